// Package command maps the /peek command surface onto the session
// controller.
package command

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/messages"
	"github.com/antoniostano/peek/internal/observability"
	"github.com/antoniostano/peek/internal/policy"
	"github.com/antoniostano/peek/internal/session"
	"github.com/antoniostano/peek/internal/stats"
)

const (
	OutcomeUsage         = "usage"
	OutcomePlayerOnly    = "player_only"
	OutcomeNoPermission  = "no_permission"
	OutcomeStats         = "stats"
	OutcomeStatsDisabled = "stats_disabled"
	OutcomeError         = "error"
)

var subcommands = []string{"exit", "stats", "privacy", "accept", "deny"}

// Controller is the part of *session.Controller the dispatcher drives.
type Controller interface {
	Start(ctx context.Context, observer host.ActorID, targetName string) (session.Result, error)
	Exit(ctx context.Context, observer host.ActorID) (session.Result, error)
	Accept(ctx context.Context, subject host.ActorID) (session.Result, error)
	Deny(ctx context.Context, subject host.ActorID) (session.Result, error)
	TogglePrivacy(ctx context.Context, actor host.ActorID) (session.Result, error)
}

type StatsReader interface {
	Get(actor host.ActorID) stats.ActorStats
}

// Sender is whoever issued the command. Console senders have no actor.
type Sender struct {
	ID     host.ActorID
	Player bool
}

type Reply struct {
	Outcome string            `json:"outcome"`
	Session *session.Result   `json:"session,omitempty"`
	Stats   *stats.ActorStats `json:"stats,omitempty"`
	Text    string            `json:"text,omitempty"`
}

type Options struct {
	Controller Controller
	World      host.World
	Messenger  host.Messenger
	Messages   *messages.Catalog
	// Stats is nil when statistics are disabled.
	Stats   StatsReader
	Metrics *observability.Metrics
	Debug   bool
}

type Dispatcher struct {
	ctrl      Controller
	world     host.World
	messenger host.Messenger
	messages  *messages.Catalog
	stats     StatsReader
	metrics   *observability.Metrics
	debug     bool
}

func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		ctrl:      opts.Controller,
		world:     opts.World,
		messenger: opts.Messenger,
		messages:  opts.Messages,
		stats:     opts.Stats,
		metrics:   opts.Metrics,
		debug:     opts.Debug,
	}
	if d.messenger == nil {
		if m, ok := opts.World.(host.Messenger); ok {
			d.messenger = m
		}
	}
	if d.messages == nil {
		d.messages = messages.Default()
	}
	return d
}

// Execute runs one /peek invocation. Panics and controller failures are
// reported to the sender as a generic failure and returned as an error.
func (d *Dispatcher) Execute(ctx context.Context, sender Sender, args []string) (reply Reply, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("command: /peek %s by %s panicked: %v", strings.Join(args, " "), sender.ID, r)
			reply = d.fail(sender, "command-error")
			err = fmt.Errorf("command panicked: %v", r)
		}
		elapsed := time.Since(started)
		d.metrics.ObserveStage(observability.StageCommand, elapsed)
		if d.debug {
			log.Printf("command: /peek %s by %s -> %s in %s", strings.Join(args, " "), sender.ID, reply.Outcome, elapsed)
		}
	}()

	if !sender.Player {
		return d.reply(sender, OutcomePlayerOnly, "command-player-only"), nil
	}
	if !d.world.HasPermission(sender.ID, policy.NodeUse) {
		return d.reply(sender, OutcomeNoPermission, "no-permission"), nil
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return d.reply(sender, OutcomeUsage, "usage"), nil
	}

	var res session.Result
	switch arg := strings.TrimSpace(args[0]); strings.ToLower(arg) {
	case "exit":
		res, err = d.ctrl.Exit(ctx, sender.ID)
	case "stats":
		return d.statsReply(sender), nil
	case "privacy":
		res, err = d.ctrl.TogglePrivacy(ctx, sender.ID)
	case "accept":
		res, err = d.ctrl.Accept(ctx, sender.ID)
	case "deny":
		res, err = d.ctrl.Deny(ctx, sender.ID)
	default:
		res, err = d.ctrl.Start(ctx, sender.ID, arg)
	}
	if err != nil {
		log.Printf("command: /peek %s by %s failed: %v", arg0(args), sender.ID, err)
		return d.fail(sender, "command-error"), err
	}
	return Reply{Outcome: string(res.Outcome), Session: &res}, nil
}

func (d *Dispatcher) statsReply(sender Sender) Reply {
	if d.stats == nil {
		return d.reply(sender, OutcomeStatsDisabled, "stats-disabled")
	}
	s := d.stats.Get(sender.ID)
	reply := d.reply(sender, OutcomeStats, "stats-self",
		"peek_count", strconv.FormatInt(s.PeekCount, 10),
		"peeked_count", strconv.FormatInt(s.PeekedCount, 10),
		"peek_duration", strconv.FormatFloat(s.PeekMinutes(), 'f', 1, 64),
	)
	reply.Stats = &s
	return reply
}

// Complete returns tab completions for the argument being typed.
func (d *Dispatcher) Complete(sender Sender, args []string) []string {
	if len(args) > 1 {
		return nil
	}
	prefix := ""
	if len(args) == 1 {
		prefix = strings.ToLower(strings.TrimSpace(args[0]))
	}
	self := ""
	if sender.Player {
		self = strings.ToLower(d.world.Name(sender.ID))
	}

	var out []string
	for _, sub := range subcommands {
		if strings.HasPrefix(sub, prefix) {
			out = append(out, sub)
		}
	}
	var names []string
	for _, name := range d.world.OnlineNames() {
		lower := strings.ToLower(name)
		if lower != self && strings.HasPrefix(lower, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append(out, names...)
}

func (d *Dispatcher) reply(sender Sender, outcome, key string, pairs ...string) Reply {
	text, _ := d.messages.Render(key, pairs...)
	if sender.Player && text != "" && d.messenger != nil {
		d.messenger.SendMessage(sender.ID, text)
	}
	return Reply{Outcome: outcome, Text: text}
}

func (d *Dispatcher) fail(sender Sender, key string) Reply {
	return d.reply(sender, OutcomeError, key)
}

func arg0(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
