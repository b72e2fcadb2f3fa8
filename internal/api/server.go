// Package api provides the HTTP server and handlers.
package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/filedash/filedash/internal/auth"
	"github.com/filedash/filedash/internal/events"
	"github.com/filedash/filedash/internal/logging"
	"github.com/filedash/filedash/internal/metadata"
	"github.com/filedash/filedash/internal/metrics"
	"github.com/filedash/filedash/pkg/models"
	"github.com/filedash/filedash/pkg/protocol"
)

// Pool gzip writers to reduce allocations on listing endpoints.
var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Server is the HTTP server.
type Server struct {
	store       metadata.Store
	auth        *auth.Auth
	broadcaster *events.Broadcaster
}

// NewServer creates a new server.
func NewServer(store metadata.Store, authHandler *auth.Auth, broadcaster *events.Broadcaster) *Server {
	return &Server{
		store:       store,
		auth:        authHandler,
		broadcaster: broadcaster,
	}
}

// Handler returns the HTTP handler with auth and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)

	// Protected endpoints
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/files/{userID}", s.handleRootListing)
	protected.HandleFunc("GET /api/v1/files/{userID}/folders/{folderID}", s.handleChildren)
	protected.HandleFunc("POST /api/v1/files/{userID}/request", s.handleRequestFile)
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// userFromPath parses the userID path value and checks it against the
// authenticated user. Listings are private to their owner.
func (s *Server) userFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	claims := auth.GetClaims(r.Context())
	if claims == nil || claims.UserID != userID {
		s.sendError(w, http.StatusForbidden, "access denied")
		return 0, false
	}
	return userID, true
}

func (s *Server) handleRootListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromPath(w, r)
	if !ok {
		return
	}

	entries, err := s.store.RootListing(r.Context(), userID)
	if errors.Is(err, metadata.ErrUserNotFound) {
		s.sendError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.Error("root listing failed", zap.Int64("user_id", userID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.RecordListing("root", len(entries))
	s.writeListing(w, r, entries)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromPath(w, r)
	if !ok {
		return
	}
	folderID, err := strconv.ParseInt(r.PathValue("folderID"), 10, 64)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid folder id")
		return
	}

	entries, err := s.store.Children(r.Context(), userID, folderID)
	if err != nil {
		logging.Error("children listing failed",
			zap.Int64("user_id", userID),
			zap.Int64("folder_id", folderID),
			zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.RecordListing("folder", len(entries))
	s.writeListing(w, r, entries)
}

func (s *Server) handleRequestFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromPath(w, r)
	if !ok {
		return
	}

	var req protocol.RequestFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.store.FileByID(r.Context(), userID, req.FileID)
	if err != nil {
		logging.Error("file lookup failed", zap.Int64("file_id", req.FileID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entry == nil {
		// Folders and unknown ids are both rejected: only files
		// can be requested for download.
		metrics.RecordDownloadRequest("rejected")
		s.sendError(w, http.StatusConflict, "not a downloadable file")
		return
	}

	if err := s.store.MarkRequested(r.Context(), userID, req.FileID); err != nil {
		logging.Error("mark requested failed", zap.Int64("file_id", req.FileID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.RecordDownloadRequest("accepted")
	s.broadcaster.Publish(protocol.Event{
		Type:    protocol.EventRequested,
		UserID:  userID,
		EntryID: entry.ID,
		Name:    entry.Name,
	})
	logging.Info("download requested",
		zap.Int64("user_id", userID),
		zap.Int64("file_id", entry.ID),
		zap.String("name", entry.Name))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(protocol.RequestFileResponse{
		FileID:   entry.ID,
		Name:     entry.Name,
		Accepted: true,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) writeListing(w http.ResponseWriter, r *http.Request, entries []models.Entry) {
	if entries == nil {
		entries = []models.Entry{}
	}
	resp := protocol.ListResponse{Entries: entries}

	w.Header().Set("Content-Type", "application/json")
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		json.NewEncoder(gw).Encode(resp)
		gw.Close()
		gzipPool.Put(gw)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}
