// Package identity derives the short fingerprints used to detect whether a
// mail or task already has a work folder.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = 16

// Hash returns the first 16 lowercase hex characters of SHA-256(s).
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:Size]
}

// MailHash fingerprints a message from its raw subject, date and sender.
func MailHash(subject, date, from string) string {
	return Hash(subject + "|" + date + "|" + from)
}

// FolderHash fingerprints a manually created folder by name.
func FolderHash(name string) string {
	return Hash(name)
}
