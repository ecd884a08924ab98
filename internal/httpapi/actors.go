package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/antoniostano/peek/internal/command"
	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/stats"
)

type joinRequest struct {
	Name        string         `json:"name"`
	Location    *host.Location `json:"location,omitempty"`
	Mode        string         `json:"mode,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
}

type joinResponse struct {
	Actor     host.ActorID `json:"actor"`
	Name      string       `json:"name"`
	Recovered bool         `json:"recovered"`
}

type commandRequest struct {
	Args []string `json:"args"`
}

type statsResponse struct {
	Actor host.ActorID `json:"actor"`
	stats.ActorStats
	PeekMinutes float64 `json:"peek_minutes"`
}

// handleJoin brings an actor online and restores them from any journaled
// session they were interrupted in.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var mode host.Mode
	if strings.TrimSpace(req.Mode) != "" {
		parsed, err := host.ParseMode(req.Mode)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_mode", err.Error())
			return
		}
		mode = parsed
	}
	if err := s.host.Join(id, req.Name, req.Location, mode, req.Permissions...); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_actor", err.Error())
		return
	}

	recovered, err := s.sessions.HandleJoin(r.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, joinResponse{Actor: id, Name: s.host.Name(id), Recovered: recovered})
}

// handleQuit takes the actor offline first so that teardown sees the
// disconnect and keeps the journal entry.
func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	if err := s.host.Quit(id); err != nil {
		status, code := statusFor(err)
		respondError(w, status, code, err.Error())
		return
	}
	if err := s.sessions.HandleQuit(r.Context(), id); err != nil {
		status, code := statusFor(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"actor": id, "online": false})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	var loc host.Location
	if err := decodeJSON(r, &loc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(loc.World) == "" {
		respondError(w, http.StatusBadRequest, "invalid_location", "world is required")
		return
	}
	if err := s.host.Move(id, loc); err != nil {
		status, code := statusFor(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"actor": id, "location": loc})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	if !s.host.IsOnline(id) {
		respondError(w, http.StatusNotFound, "actor_offline", "actor is not online")
		return
	}
	s.runCommand(w, r, command.Sender{ID: id, Player: true})
}

func (s *Server) handleConsoleCommand(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, command.Sender{})
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, sender command.Sender) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	reply, err := s.commands.Execute(r.Context(), sender, req.Args)
	if err != nil {
		status, _ := statusFor(err)
		log.Printf("httpapi: command for %s failed: %v", sender.ID, err)
		respondJSON(w, status, reply)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	args := r.URL.Query()["arg"]
	respondJSON(w, http.StatusOK, map[string]any{
		"options": nonNil(s.commands.Complete(command.Sender{ID: id, Player: true}, args)),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		respondError(w, http.StatusNotFound, "stats_disabled", "statistics are disabled")
		return
	}
	id := actorParam(r, "id")
	st := s.stats.Get(id)
	respondJSON(w, http.StatusOK, statsResponse{Actor: id, ActorStats: st, PeekMinutes: st.PeekMinutes()})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	id := actorParam(r, "id")
	respondJSON(w, http.StatusOK, map[string]any{
		"actor":         id,
		"notifications": s.host.History(id),
	})
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
