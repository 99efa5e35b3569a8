// Package server hosts a long-lived document QA session over HTTP and
// websockets, plus a cross-origin isolated static dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/session"
	"github.com/gorilla/websocket"
)

// maxUploadBytes bounds one document upload request.
const maxUploadBytes = 64 << 20

// Server wraps one shared session with HTTP and websocket endpoints.
type Server struct {
	cfg      config.Config
	sess     *session.Session
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server around the given session.
func New(cfg config.Config, sess *session.Session, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		sess:   sess,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler builds the full route table with logging and isolation headers
// applied to every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/documents", s.handleDocuments)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/ws/chat", s.handleChat)

	if info, err := os.Stat(s.cfg.StaticDir); err == nil && info.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintln(w, "doclens server")
		})
	}

	return LoggingMiddleware(s.logger, IsolationMiddleware(mux))
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.ServerAddr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming answers have no bounded duration
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleStats returns the aggregated session metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Stats())
}

// ingestResponse is the body returned by POST /api/documents.
type ingestResponse struct {
	DocumentsIndexed int      `json:"documents_indexed"`
	ChunksIndexed    int      `json:"chunks_indexed"`
	Errors           []string `json:"errors,omitempty"`
}

// handleDocuments ingests uploaded documents into the shared session.
// Accepts multipart form uploads under the "documents" field.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("parse upload: %v", err), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		http.Error(w, "no documents in upload", http.StatusBadRequest)
		return
	}

	var resp ingestResponse
	for _, header := range files {
		chunks, err := s.ingestUpload(r.Context(), header.Filename, header)
		resp.ChunksIndexed += chunks
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", header.Filename, err))
			continue
		}
		resp.DocumentsIndexed++
	}

	writeJSON(w, http.StatusOK, resp)
}

// ingestUpload stages one uploaded file on disk so the extension-based
// extractors can run, then indexes it under its original filename.
func (s *Server) ingestUpload(ctx context.Context, name string, header *multipart.FileHeader) (int, error) {
	src, err := header.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "doclens-upload-")
	if err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return 0, fmt.Errorf("stage upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}

	return s.sess.IngestFile(ctx, path)
}

// handleReset clears the conversation history and analytics of the
// shared session. Indexed documents stay.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// chatRequest is one inbound websocket message.
type chatRequest struct {
	Query string `json:"query"`
}

// chatFrame is one outbound websocket message. Type is "token" while the
// answer streams, then "answer" with the full result, or "error".
type chatFrame struct {
	Type   string          `json:"type"`
	Token  string          `json:"token,omitempty"`
	Answer *session.Answer `json:"answer,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// handleChat streams answers over a websocket, one query per message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if req.Query == "" {
			if err := conn.WriteJSON(chatFrame{Type: "error", Error: "empty query"}); err != nil {
				return
			}
			continue
		}

		answer, err := s.sess.AskStream(r.Context(), req.Query, func(token string) error {
			return conn.WriteJSON(chatFrame{Type: "token", Token: token})
		})
		if err != nil {
			if writeErr := conn.WriteJSON(chatFrame{Type: "error", Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(chatFrame{Type: "answer", Answer: answer}); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}
