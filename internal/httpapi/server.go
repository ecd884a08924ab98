package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/peek/internal/command"
	"github.com/antoniostano/peek/internal/config"
	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/host/sim"
	"github.com/antoniostano/peek/internal/observability"
	"github.com/antoniostano/peek/internal/session"
)

// Host is the world surface exposed over HTTP: the controller's view plus
// presence and notification history. *sim.World implements it.
type Host interface {
	host.World
	Join(id host.ActorID, name string, loc *host.Location, mode host.Mode, perms ...string) error
	Quit(id host.ActorID) error
	Move(id host.ActorID, loc host.Location) error
	Subscribe(id host.ActorID) (<-chan sim.Notification, func())
	History(id host.ActorID) []sim.Notification
}

var _ Host = (*sim.World)(nil)

type Deps struct {
	Host     Host
	Sessions *session.Controller
	Commands *command.Dispatcher
	// Stats is nil when statistics are disabled.
	Stats          command.StatsReader
	Events         *EventHub
	Metrics        *observability.Metrics
	JournalBackend string
}

type Server struct {
	cfg      config.Config
	host     Host
	sessions *session.Controller
	commands *command.Dispatcher
	stats    command.StatsReader
	events   *EventHub
	metrics  *observability.Metrics
	backend  string
	upgrader websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	events := deps.Events
	if events == nil {
		events = NewEventHub()
	}
	return &Server{
		cfg:      cfg,
		host:     deps.Host,
		sessions: deps.Sessions,
		commands: deps.Commands,
		stats:    deps.Stats,
		events:   events,
		metrics:  deps.Metrics,
		backend:  deps.JournalBackend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may attach to an actor's stream.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Route("/v1/actors/{id}", func(r chi.Router) {
		r.Post("/join", s.handleJoin)
		r.Post("/quit", s.handleQuit)
		r.Post("/move", s.handleMove)
		r.Post("/command", s.handleCommand)
		r.Get("/complete", s.handleComplete)
		r.Get("/stats", s.handleStats)
		r.Get("/notifications", s.handleNotifications)
		r.Get("/ws", s.handleActorWS)
	})
	r.Post("/v1/console/command", s.handleConsoleCommand)

	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/sessions/{observer}", s.handleGetSession)
	r.Get("/v1/journal", s.handleListJournal)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.Sessions(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "controller_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": len(sessions),
		"journal_backend": s.backend,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	pending, err := s.sessions.Pending(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":          "not_ready",
			"journal_backend": s.backend,
			"error":           err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"journal_backend":    s.backend,
		"pending_recoveries": len(pending),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func actorParam(r *http.Request, name string) host.ActorID {
	return host.ActorID(strings.TrimSpace(chi.URLParam(r, name)))
}

// statusFor maps controller errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, sim.ErrUnknownActor):
		return http.StatusNotFound, "actor_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
