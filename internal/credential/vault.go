// Package credential seals the mail password before it is written to the
// settings file. The plaintext is never persisted.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lu-zhengda/knot/internal/logging"
)

const (
	serviceName = "knot"
	keyUser     = "settings-key"
)

// Blob prefixes. PrefixEncoded blobs are only base64 and offer no
// confidentiality.
const (
	PrefixSealed  = "v1:"
	PrefixEncoded = "b64:"
)

// Keyring is the OS secret store holding the sealing key.
type Keyring interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Set(service, user, secret string) error   { return keyring.Set(service, user, secret) }

// Vault seals and opens password blobs.
type Vault struct {
	ring Keyring
	log  *logrus.Logger
}

// NewVault returns a Vault backed by the OS keyring
// (macOS Keychain, Windows Credential Manager, or Linux Secret Service).
func NewVault() *Vault {
	return NewVaultWithKeyring(osKeyring{})
}

// NewVaultWithKeyring returns a Vault using ring for key storage.
func NewVaultWithKeyring(ring Keyring) *Vault {
	return &Vault{ring: ring, log: logging.Logger(logging.Settings)}
}

func (v *Vault) key(create bool) ([]byte, error) {
	encoded, err := v.ring.Get(serviceName, keyUser)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("invalid sealing key in keyring")
		}
		return key, nil
	}
	if !create || !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("failed to load key from keyring: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := v.ring.Set(serviceName, keyUser, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("failed to save key to keyring: %w", err)
	}
	return key, nil
}

// Seal encrypts plain with XChaCha20-Poly1305 under a keyring-held key.
// When no keyring is available it falls back to a base64 blob, which is
// NOT confidential.
func (v *Vault) Seal(plain string) (string, error) {
	key, err := v.key(true)
	if err != nil {
		v.log.WithError(err).Warn("keyring unavailable, storing mail password base64-encoded only (not encrypted)")
		return PrefixEncoded + base64.StdEncoding.EncodeToString([]byte(plain)), nil
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return PrefixSealed + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open recovers the plaintext from a blob produced by Seal. Unprefixed
// blobs are treated as bare base64.
func (v *Vault) Open(blob string) (string, error) {
	switch {
	case strings.HasPrefix(blob, PrefixSealed):
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, PrefixSealed))
		if err != nil {
			return "", fmt.Errorf("failed to decode password blob: %w", err)
		}
		key, err := v.key(false)
		if err != nil {
			return "", err
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return "", fmt.Errorf("failed to create cipher: %w", err)
		}
		if len(data) < aead.NonceSize() {
			return "", errors.New("password blob too short")
		}
		nonce, ct := data[:aead.NonceSize()], data[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, ct, nil)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt password: %w", err)
		}
		return string(plain), nil
	default:
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, PrefixEncoded))
		if err != nil {
			return "", fmt.Errorf("failed to decode password blob: %w", err)
		}
		return string(data), nil
	}
}

// IsConfidential reports whether blob is actually encrypted.
func IsConfidential(blob string) bool {
	return strings.HasPrefix(blob, PrefixSealed)
}
