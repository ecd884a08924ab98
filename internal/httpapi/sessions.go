package httpapi

import (
	"net/http"

	"github.com/antoniostano/peek/internal/journal"
	"github.com/antoniostano/peek/internal/session"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sessions.Sessions(r.Context())
	if err != nil {
		status, code := statusFor(err)
		respondError(w, status, code, err.Error())
		return
	}
	if infos == nil {
		infos = []session.Info{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	observer := actorParam(r, "observer")
	info, ok, err := s.sessions.Session(r.Context(), observer)
	if err != nil {
		status, code := statusFor(err)
		respondError(w, status, code, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "no active session for observer")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleListJournal lists snapshots still awaiting restoration.
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	pending, err := s.sessions.Pending(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "journal_unavailable", err.Error())
		return
	}
	if pending == nil {
		pending = []journal.Snapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"backend":   s.backend,
		"snapshots": pending,
	})
}
