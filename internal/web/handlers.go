package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classmark/classmark/internal/report"
	"github.com/classmark/classmark/internal/session"
)

const maxSessionListing = 1000

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type statusResponse struct {
		RosterSize int            `json:"roster_size"`
		Rejections int            `json:"roster_rejections"`
		Sessions   int            `json:"sessions"`
		Events     int            `json:"events"`
		Chatbot    map[string]any `json:"chatbot,omitempty"`
	}

	resp := statusResponse{}
	if s.cfg.Roster != nil {
		roster, err := s.cfg.Roster.Get(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("status: roster load failed")
			respondError(w, http.StatusInternalServerError, "roster unavailable")
			return
		}
		resp.RosterSize = roster.Len()
		resp.Rejections = len(s.cfg.Roster.Rejections())
	}
	if s.cfg.Store != nil {
		stats, err := s.cfg.Store.Stats(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("status: store stats failed")
			respondError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
		resp.Sessions = stats.Sessions
		resp.Events = stats.Events
	}
	if s.cfg.Bot != nil {
		resp.Chatbot = map[string]any{
			"entries":    s.cfg.Bot.Len(),
			"categories": s.cfg.Bot.Categories(),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSessionListing {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	sessions, err := s.cfg.Store.Sessions(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing sessions failed")
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleSessionReport rebuilds the full attendance report for a stored
// session: present rows from the persisted events, absent rows from
// the current roster.
func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	sessionID := chi.URLParam(r, "id")

	events, err := s.cfg.Store.EventsBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error().Err(err).Msg("loading session events failed")
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}

	startedAt, endedAt, found := s.sessionTimes(r, sessionID)
	if !found && len(events) == 0 {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if !found {
		// Summary row missing; fall back to the event timestamps.
		startedAt, endedAt = events[0].Timestamp, events[len(events)-1].Timestamp
	}

	var knownIDs []string
	if s.cfg.Roster != nil {
		roster, err := s.cfg.Roster.Get(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("report: roster load failed")
			respondError(w, http.StatusInternalServerError, "roster unavailable")
			return
		}
		knownIDs = roster.IDs()
	}

	sessionEvents := make([]session.Event, len(events))
	for i, ev := range events {
		sessionEvents[i] = session.Event{
			SessionID:  ev.SessionID,
			IdentityID: ev.StudentID,
			Timestamp:  ev.Timestamp,
			Confidence: ev.Confidence,
		}
	}

	set, err := report.Assemble(sessionID, startedAt, endedAt, sessionEvents, knownIDs)
	if err != nil && set == nil {
		respondError(w, http.StatusInternalServerError, "report assembly failed")
		return
	}
	respondJSON(w, http.StatusOK, set)
}

func (s *Server) sessionTimes(r *http.Request, sessionID string) (time.Time, time.Time, bool) {
	sessions, err := s.cfg.Store.Sessions(r.Context(), maxSessionListing)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	for _, sess := range sessions {
		if sess.ID == sessionID {
			return sess.StartedAt, sess.EndedAt, true
		}
	}
	return time.Time{}, time.Time{}, false
}

func (s *Server) handleDailyEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	day, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	events, err := s.cfg.Store.EventsByDate(r.Context(), day)
	if err != nil {
		s.logger.Error().Err(err).Msg("loading daily events failed")
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":   day.Format("2006-01-02"),
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Bot == nil {
		respondError(w, http.StatusServiceUnavailable, "chatbot not configured")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer := s.cfg.Bot.Respond(r.Context(), req.Question)
	respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// handleLive streams attendance events as SSE until the client
// disconnects.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.cfg.Feed.Subscribe()
	defer s.cfg.Feed.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: attendance\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
