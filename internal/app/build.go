package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/antoniostano/peek/internal/clock"
	"github.com/antoniostano/peek/internal/command"
	"github.com/antoniostano/peek/internal/config"
	"github.com/antoniostano/peek/internal/consent"
	"github.com/antoniostano/peek/internal/cooldown"
	"github.com/antoniostano/peek/internal/host/sim"
	"github.com/antoniostano/peek/internal/httpapi"
	"github.com/antoniostano/peek/internal/journal"
	"github.com/antoniostano/peek/internal/messages"
	"github.com/antoniostano/peek/internal/observability"
	"github.com/antoniostano/peek/internal/session"
	"github.com/antoniostano/peek/internal/stats"
)

// DefaultWorlds are the partitions the embedded host starts with.
var DefaultWorlds = []string{"world", "world_nether", "world_the_end"}

type Options struct {
	// Registerer receives the service metrics. Defaults to the global
	// Prometheus registry.
	Registerer prometheus.Registerer
	// Inline runs the embedded host synchronously. Used by tests.
	Inline bool
}

type BuildResult struct {
	Config         config.Config
	API            *httpapi.Server
	Host           *sim.World
	Sessions       *session.Controller
	Commands       *command.Dispatcher
	Stats          *stats.Tracker
	Metrics        *observability.Metrics
	JournalBackend string

	// Cleanup should be called after Sessions.Shutdown to persist statistics
	// and release the journal.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metrics := observability.NewMetricsWith(reg, cfg.MetricsNamespace)

	catalog, err := messages.Load(cfg.MessagesPath)
	if err != nil {
		return nil, fmt.Errorf("messages init failed: %w", err)
	}

	store, backend, err := journal.NewStore(ctx, journal.Config{
		Backend:       cfg.JournalBackend,
		Path:          cfg.JournalPath,
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		KeyPrefix:     cfg.JournalKeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("journal init failed (%s): %w", backend, err)
	}

	var (
		recorder stats.Recorder = stats.Noop{}
		reader   command.StatsReader
		tracker  *stats.Tracker
	)
	if cfg.StatisticsEnabled {
		tracker = stats.NewTracker()
		if err := tracker.Load(cfg.StatsPath); err != nil {
			log.Printf("statistics load failed, starting empty: %v", err)
		}
		recorder = tracker
		reader = tracker
	}

	world := sim.New(sim.Options{Inline: opts.Inline, Worlds: DefaultWorlds})
	events := httpapi.NewEventHub()
	clk := clock.Real()

	sessions, err := session.New(session.Options{
		World:                 world,
		Messages:              catalog,
		Journal:               store,
		Cooldown:              cooldown.NewGate(clk, cfg.Cooldown),
		Consent:               consent.NewStore(clk, cfg.ConsentTimeout),
		Stats:                 recorder,
		Metrics:               metrics,
		Clock:                 clk,
		Listener:              events.Publish,
		MaxDuration:           cfg.MaxDuration,
		CheckTargetPermission: cfg.CheckTargetPermission,
		Sounds:                session.Sounds{Start: cfg.SoundStart, End: cfg.SoundEnd},
		Debug:                 cfg.Debug,
	})
	if err != nil {
		world.Close()
		_ = store.Close()
		return nil, fmt.Errorf("session controller init failed: %w", err)
	}

	commands := command.NewDispatcher(command.Options{
		Controller: sessions,
		World:      world,
		Messages:   catalog,
		Stats:      reader,
		Metrics:    metrics,
		Debug:      cfg.Debug,
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Host:           world,
		Sessions:       sessions,
		Commands:       commands,
		Stats:          reader,
		Events:         events,
		Metrics:        metrics,
		JournalBackend: backend,
	})

	cleanup := func() error {
		var errs []string
		if tracker != nil {
			if err := tracker.Save(cfg.StatsPath); err != nil {
				errs = append(errs, err.Error())
			}
		}
		world.Close()
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:         cfg,
		API:            api,
		Host:           world,
		Sessions:       sessions,
		Commands:       commands,
		Stats:          tracker,
		Metrics:        metrics,
		JournalBackend: backend,
		Cleanup:        cleanup,
	}, nil
}
