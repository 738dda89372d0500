// Package mailbox keeps the backend's IMAP session and decodes the
// messages it fetches.
package mailbox

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/logging"
)

// DefaultLimit is used when List is called without a positive limit.
const DefaultLimit = 50

// Session is a single logged-in IMAP connection with INBOX selected.
// Commands are serialized.
type Session struct {
	mu     sync.Mutex
	conn   domain.MailConnection
	client *imapclient.Client
	log    *logrus.Logger
}

func NewSession() *Session {
	return &Session{log: logging.Logger(logging.Mailbox)}
}

// Connect logs in with conn and selects INBOX, replacing any previous
// connection.
func (s *Session) Connect(ctx context.Context, conn domain.MailConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.closeLocked()
	s.conn = conn
	return s.dialLocked()
}

// Connected reports whether a session is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Close logs out and drops the connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.client == nil {
		return
	}
	if err := s.client.Logout().Wait(); err != nil {
		s.log.WithError(err).Debug("logout failed")
	}
	s.client.Close()
	s.client = nil
}

func (s *Session) dialLocked() error {
	addr := net.JoinHostPort(s.conn.Server, strconv.Itoa(s.conn.Port))
	opts := &imapclient.Options{WordDecoder: wordDecoder}

	var (
		client *imapclient.Client
		err    error
	)
	if s.conn.UseSSL {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialStartTLS(addr, opts)
	}
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.conn.Username, s.conn.Password).Wait(); err != nil {
		client.Close()
		return fmt.Errorf("authentication failed for %s: %w", s.conn.Username, err)
	}
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		client.Logout().Wait()
		client.Close()
		return fmt.Errorf("selecting INBOX: %w", err)
	}

	s.client = client
	s.log.WithFields(logrus.Fields{"server": addr, "user": s.conn.Username}).Info("mail session connected")
	return nil
}

// ensureLocked checks the connection with NOOP and reconnects once if the
// server stopped answering.
func (s *Session) ensureLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.client == nil {
		return domain.ErrNotConnected
	}
	if err := s.client.Noop().Wait(); err != nil {
		s.log.WithError(err).Warn("IMAP connection check failed, reconnecting")
		s.client.Close()
		s.client = nil
		if err := s.dialLocked(); err != nil {
			return fmt.Errorf("reconnect failed: %w", err)
		}
	}
	return nil
}

// List returns up to limit messages received in the last days days, newest
// first. When the dated search fails every message is considered.
func (s *Session) List(ctx context.Context, limit, days int) ([]domain.MailItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	criteria := &imap.SearchCriteria{}
	if days > 0 {
		criteria.Since = time.Now().AddDate(0, 0, -days)
	}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		s.log.WithError(err).Warn("dated search failed, listing all messages")
		data, err = s.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
		if err != nil {
			return nil, fmt.Errorf("searching messages: %w", err)
		}
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return []domain.MailItem{}, nil
	}
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:      true,
		UID:           true,
		BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
	})
	defer fetchCmd.Close()

	byUID := make(map[imap.UID]domain.MailItem, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		byUID[buf.UID] = itemFromBuffer(buf)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching envelopes: %w", err)
	}

	items := make([]domain.MailItem, 0, len(byUID))
	for i := len(uids) - 1; i >= 0; i-- {
		if item, ok := byUID[uids[i]]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// Detail fetches and decodes one message.
func (s *Session) Detail(ctx context.Context, id string) (*domain.MailDetail, error) {
	raw, err := s.fetchRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	p := parseMessage(raw)
	return &domain.MailDetail{
		Body:        p.body(),
		HTMLBody:    p.html,
		Attachments: p.attachmentInfo(),
		RawContent:  string(raw),
	}, nil
}

// Attachments lists the attachments of one message.
func (s *Session) Attachments(ctx context.Context, id string) ([]domain.Attachment, error) {
	raw, err := s.fetchRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return parseMessage(raw).attachmentInfo(), nil
}

// SaveAttachments writes every non-empty attachment of message id into
// dir and returns the saved file names.
func (s *Session) SaveAttachments(ctx context.Context, id, dir string) ([]string, error) {
	raw, err := s.fetchRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return saveParts(parseMessage(raw), dir, s.log)
}

func saveParts(p parsedMessage, dir string, log *logrus.Logger) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	saved := []string{}
	for _, a := range p.attachments {
		if len(a.data) == 0 {
			continue
		}
		name := safeFilename(a.Filename)
		if err := os.WriteFile(filepath.Join(dir, name), a.data, 0o644); err != nil {
			log.WithError(err).WithField("file", name).Warn("failed to save attachment")
			continue
		}
		saved = append(saved, name)
	}
	return saved, nil
}

func (s *Session) fetchRaw(ctx context.Context, id string) ([]byte, error) {
	uid, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil || uid == 0 {
		return nil, domain.NewValidationError("invalid mail id %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}
	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message %s body: %w", id, domain.ErrNotFound)
	}
	return raw, nil
}

func itemFromBuffer(buf *imapclient.FetchMessageBuffer) domain.MailItem {
	item := domain.MailItem{ID: strconv.FormatUint(uint64(buf.UID), 10)}
	if env := buf.Envelope; env != nil {
		item.Subject = decodeHeader(env.Subject)
		if !env.Date.IsZero() {
			item.Date = env.Date.Format(time.RFC1123Z)
		}
		if len(env.From) > 0 {
			from := env.From[0]
			if from.Name != "" {
				item.From = decodeHeader(from.Name)
			} else {
				item.From = from.Addr()
			}
		}
	}
	if buf.BodyStructure != nil {
		item.AttachmentCount = countAttachments(buf.BodyStructure)
	}
	item.HasAttachments = item.AttachmentCount > 0
	return item
}

// countAttachments counts the leaf parts that carry an attachment
// disposition or a file name.
func countAttachments(bs imap.BodyStructure) int {
	n := 0
	bs.Walk(func(_ []int, part imap.BodyStructure) bool {
		single, ok := part.(*imap.BodyStructureSinglePart)
		if !ok {
			return true
		}
		if d := part.Disposition(); d != nil && strings.EqualFold(d.Value, "attachment") {
			n++
			return true
		}
		if single.Params["name"] != "" && !strings.EqualFold(single.Type, "text") {
			n++
		}
		return true
	})
	return n
}
