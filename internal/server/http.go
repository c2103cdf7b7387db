package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"support-agent/internal/message"
	"support-agent/internal/orchestrator"
	"support-agent/internal/storage"
)

type HTTPServer struct {
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

func New(orch *orchestrator.Orchestrator, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{orch: orch, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/", s.handleConversation)
	return s.logRequests(mux)
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Metrics())
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Metadata       *struct {
		URL       string `json:"url,omitempty"`
		UserAgent string `json:"userAgent,omitempty"`
	} `json:"metadata,omitempty"`
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	oreq := orchestrator.Request{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		UserHandle:     strings.TrimSpace(r.Header.Get("X-User-Handle")),
	}
	if req.Metadata != nil {
		oreq.Metadata = message.Metadata{
			URL:       req.Metadata.URL,
			UserAgent: req.Metadata.UserAgent,
		}
	}

	resp, err := s.orch.HandleMessage(r.Context(), oreq)
	if err != nil {
		s.writeHandleErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) writeHandleErr(w http.ResponseWriter, err error) {
	var verr *orchestrator.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErr(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, orchestrator.ErrModerationBlocked):
		writeErr(w, http.StatusForbidden, "message rejected by content moderation")
	case errors.Is(err, storage.ErrNotFound):
		writeErr(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, orchestrator.ErrLoopExhausted):
		s.log.Error().Err(err).Msg("turn failed")
		writeErr(w, http.StatusBadGateway, "the assistant could not produce a reply; please try again")
	default:
		s.log.Error().Err(err).Msg("turn failed")
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 30
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ids, err := s.orch.ListConversationIDs(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

func (s *HTTPServer) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/conversations/"), "/")
	if id == "" {
		writeErr(w, http.StatusBadRequest, "conversation id required")
		return
	}
	conv, err := s.orch.Conversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	var extra struct{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("request must contain one JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
