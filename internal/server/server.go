// Package server is the knot backend: the HTTP process that owns the mail
// session and performs every filesystem change.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/archive"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/folder"
	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/store"
)

// Mailbox is the backend's mail session. mailbox.Session satisfies it.
type Mailbox interface {
	Connect(ctx context.Context, conn domain.MailConnection) error
	Connected() bool
	List(ctx context.Context, limit, days int) ([]domain.MailItem, error)
	Detail(ctx context.Context, id string) (*domain.MailDetail, error)
	Attachments(ctx context.Context, id string) ([]domain.Attachment, error)
	SaveAttachments(ctx context.Context, id, dir string) ([]string, error)
}

// Options configures a Server.
type Options struct {
	Addr        string
	CORSOrigins []string
}

// Server routes backend requests.
type Server struct {
	opts    Options
	mail    Mailbox
	local   *archive.Local
	folders *folder.Materializer
	history store.History
	log     *logrus.Logger
}

// New creates a server. history may be nil.
func New(opts Options, mail Mailbox, history store.History) *Server {
	return &Server{
		opts:    opts,
		mail:    mail,
		local:   archive.NewLocal(),
		folders: folder.NewMaterializer(),
		history: history,
		log:     logging.Logger(logging.Server),
	}
}

// Handler returns the routed handler with middleware applied.
// Order: CORS → Recovery → request logging → routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/mail/connect", s.handleConnect)
	mux.HandleFunc("GET /api/mail/list", s.handleListMail)
	mux.HandleFunc("GET /api/mail/{id}/detail", s.handleMailDetail)
	mux.HandleFunc("GET /api/mail/{id}/attachments", s.handleAttachments)

	mux.HandleFunc("POST /api/folder/create", s.handleCreateFolder)
	mux.HandleFunc("POST /api/folder/create-with-attachments", s.handleCreateFolderWithAttachments)
	mux.HandleFunc("POST /api/folder/check-hash", s.handleCheckHash)

	mux.HandleFunc("GET /api/archive/scan", s.handleScan)
	mux.HandleFunc("POST /api/archive/move", s.handleMove)
	mux.HandleFunc("POST /api/archive/batch-move", s.handleBatchMove)
	mux.HandleFunc("POST /api/archive/update-work-record", s.handleUpdateWorkRecord)

	var handler http.Handler = mux
	handler = RequestLogger(s.log)(handler)
	handler = Recovery(s.log)(handler)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	})
	return corsHandler.Handler(handler)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.opts.Addr).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordCreated and recordArchived never fail the request.
func (s *Server) recordCreated(ctx context.Context, ev store.FolderEvent) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordCreated(ctx, ev); err != nil {
		s.log.WithError(err).Warn("failed to record folder creation")
	}
}

func (s *Server) recordArchived(ctx context.Context, ev store.FolderEvent) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordArchived(ctx, ev); err != nil {
		s.log.WithError(err).Warn("failed to record archive move")
	}
}
