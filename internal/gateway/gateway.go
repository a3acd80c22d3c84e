package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hatchline/eggwatch/internal/bus"
	"github.com/hatchline/eggwatch/internal/channel"
	"github.com/hatchline/eggwatch/internal/command"
	"github.com/hatchline/eggwatch/internal/config"
	"github.com/hatchline/eggwatch/internal/egg"
	"github.com/hatchline/eggwatch/internal/store"
)

// Gateway wires the store, tracker, channels and command surface into the
// running bot process.
type Gateway struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	store    *store.Store
	tracker  *egg.Tracker
	handler  *command.Handler
	channels *channel.ChannelManager

	signalChan chan os.Signal // for testing
}

// Options for creating a Gateway
type Options struct {
	SignalChan chan os.Signal
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg, signalChan: opts.SignalChan}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	// The durable store is the one fatal dependency: no store, no counting.
	st, err := store.New(cfg.Tracker.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st

	seed, err := config.LoadSeed(cfg.Tracker.SeedPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	tracker, err := egg.NewTracker(st, egg.Options{
		TZOffsetHours:  cfg.Tracker.TZOffsetHours,
		RetentionDays:  cfg.Tracker.RetentionDays,
		AutomationOnly: cfg.Tracker.AutomationOnly,
		Source:         &archiveSource{store: st},
		Notifier:       &reportNotifier{gateway: g},
		Archive:        true,
		Seed:           seed,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init tracker: %w", err)
	}
	g.tracker = tracker
	g.handler = command.NewHandler(tracker)

	channels, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		tracker.Close()
		_ = st.Close()
		return nil, err
	}
	g.channels = channels

	return g, nil
}

// Tracker exposes the counting engine, mainly for tests and the status
// command.
func (g *Gateway) Tracker() *egg.Tracker {
	return g.tracker
}

// Run starts everything and blocks until a shutdown signal arrives.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels up: %s", strings.Join(g.channels.EnabledChannels(), ", "))

	if err := g.tracker.Scheduler.Start(); err != nil {
		return fmt.Errorf("start rollover scheduler: %w", err)
	}

	go g.dispatchLoop(ctx)

	sigChan := g.signalChan
	if sigChan == nil {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	}

	select {
	case sig := <-sigChan:
		log.Printf("[gateway] received %v, shutting down", sig)
	case <-ctx.Done():
	}

	cancel()
	_ = g.channels.StopAll()
	g.tracker.Close()
	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] store close: %v", err)
	}
	return nil
}

// dispatchLoop routes inbound messages: commands go to the command surface,
// everything else through the live counting path.
func (g *Gateway) dispatchLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			if command.IsCommand(msg.Content) {
				if reply, ok := g.handler.Handle(ctx, &msg); ok {
					g.bus.PublishOutbound(reply)
				}
				continue
			}
			g.tracker.Ingest(&msg)
		case <-ctx.Done():
			return
		}
	}
}

// archiveSource replays the store's message archive. The chat platform here
// (Telegram) offers no server-side history fetch, so the archive appended on
// ingestion stands in as the replayable event record.
type archiveSource struct {
	store *store.Store
}

func (a *archiveSource) Replay(ctx context.Context, since, before time.Time, fn func(egg.Event) error) error {
	return a.store.ReplayMessages(ctx, since, before, func(m store.ArchivedMessage) error {
		return fn(egg.Event{
			Text:       m.Text,
			Timestamp:  m.Timestamp,
			Automation: m.Automation,
		})
	})
}

// reportNotifier delivers the daily rollover report to the configured chat.
// Delivery failure is the scheduler's to log; it never aborts the rollover.
type reportNotifier struct {
	gateway *Gateway
}

func (n *reportNotifier) DailyReport(date string, counts map[string]int, total int) error {
	cfg := n.gateway.cfg.Report
	if cfg.Channel == "" || cfg.ChatID == "" {
		return nil // reporting not configured
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily Egg Report (%s)", date)
	registry := n.gateway.tracker.Registry
	for _, name := range names {
		typeLabel := name
		if t, ok := registry.Get(name); ok {
			typeLabel = t.Label()
		}
		fmt.Fprintf(&b, "\n%s %s: %d", registry.Emoji(name), typeLabel, counts[name])
	}
	fmt.Fprintf(&b, "\nTOTAL: %d", total)

	n.gateway.bus.PublishOutbound(bus.OutboundMessage{
		Channel: cfg.Channel,
		ChatID:  cfg.ChatID,
		Content: b.String(),
	})
	return nil
}
