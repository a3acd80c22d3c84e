// Package command implements the text command surface: parsing /egg commands
// out of inbound messages, invoking the tracker, and rendering replies.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hatchline/eggwatch/internal/bus"
	"github.com/hatchline/eggwatch/internal/egg"
)

const helpText = `egg tracker commands:
/egg [type] [when] - counts (when: today, 24h, 7d, 14d, Nh, Nd, all)
/eggtrend - today vs yesterday
/eggadd <name> <pattern> [emoji] - add a type
/eggremove <name> - remove a type and its history
/eggemoji <name> <emoji> - set display emoji
/eggreset [name] - zero today's counts
/egghelp - this help`

// Handler turns inbound command messages into replies. Non-command messages
// are left alone for the live counting path.
type Handler struct {
	tracker *egg.Tracker
	now     func() time.Time
}

func NewHandler(tracker *egg.Tracker) *Handler {
	return &Handler{tracker: tracker, now: time.Now}
}

// IsCommand reports whether content addresses the command surface.
func IsCommand(content string) bool {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return false
	}
	return canonicalCommand(fields[0]) != ""
}

// canonicalCommand strips the @botname suffix Telegram appends in group
// chats and returns the command word, or "" if it is not one of ours.
func canonicalCommand(word string) string {
	word = strings.SplitN(word, "@", 2)[0]
	switch word {
	case "/egg", "/eggtrend", "/eggadd", "/eggremove", "/eggemoji", "/eggreset", "/egghelp":
		return word
	}
	return ""
}

// Handle executes the command in msg and returns the reply. The boolean is
// false when msg is not a command.
func (h *Handler) Handle(ctx context.Context, msg *bus.InboundMessage) (bus.OutboundMessage, bool) {
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return bus.OutboundMessage{}, false
	}

	var reply string
	switch canonicalCommand(fields[0]) {
	case "/egg":
		reply = h.handleQuery(ctx, fields[1:])
	case "/eggtrend":
		reply = h.handleTrend(ctx)
	case "/eggadd":
		reply = h.handleAdd(fields[1:])
	case "/eggremove":
		reply = h.handleRemove(fields[1:])
	case "/eggemoji":
		reply = h.handleEmoji(fields[1:])
	case "/eggreset":
		reply = h.handleReset(fields[1:])
	case "/egghelp":
		reply = helpText
	default:
		return bus.OutboundMessage{}, false
	}

	return bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	}, true
}

func (h *Handler) handleQuery(ctx context.Context, args []string) string {
	typeFilter := egg.TypeAll
	when := ""
	if len(args) > 0 {
		// First arg is a type name if registered (or "all"); otherwise the
		// whole argument list is the window.
		if args[0] == egg.TypeAll {
			when = strings.Join(args[1:], " ")
		} else if _, ok := h.tracker.Registry.Get(args[0]); ok {
			typeFilter = args[0]
			when = strings.Join(args[1:], " ")
		} else {
			when = strings.Join(args, " ")
		}
	}

	now := h.now()
	spec := ParseWindow(when, now, h.tracker.Zone())

	var res *egg.QueryResult
	var err error
	switch spec.Kind {
	case KindLive:
		res, err = h.tracker.QueryToday(typeFilter)
	default:
		res, err = h.tracker.QueryWindow(ctx, typeFilter, spec.Window)
	}
	if err != nil {
		return renderError(err)
	}

	if typeFilter != egg.TypeAll {
		return fmt.Sprintf("%s %s (%s): %d",
			h.tracker.Registry.Emoji(typeFilter), h.label(typeFilter), spec.Label, res.PerType[typeFilter])
	}
	return h.renderBreakdown(fmt.Sprintf("🥚 Egg Count (%s)", spec.Label), res.PerType, res.Total)
}

func (h *Handler) handleTrend(ctx context.Context) string {
	today, yesterday, err := h.tracker.Trend(ctx, h.now())
	if err != nil {
		return renderError(err)
	}
	diff := today - yesterday
	arrow := "📈"
	if diff < 0 {
		arrow = "📉"
		diff = -diff
	}
	return fmt.Sprintf("📊 Egg Trend\nToday: %d\nYesterday: %d\nTrend: %s %d eggs", today, yesterday, arrow, diff)
}

func (h *Handler) handleAdd(args []string) string {
	if len(args) < 2 {
		return "usage: /eggadd <name> <pattern> [emoji]"
	}
	name, pattern := args[0], args[1]
	emoji := ""
	if len(args) > 2 {
		emoji = args[2]
	}
	if _, err := h.tracker.RegisterType(name, pattern, emoji); err != nil {
		return renderError(err)
	}
	return fmt.Sprintf("Added %s %s.", h.tracker.Registry.Emoji(name), name)
}

func (h *Handler) handleRemove(args []string) string {
	if len(args) != 1 {
		return "usage: /eggremove <name>"
	}
	if err := h.tracker.DeregisterType(args[0]); err != nil {
		return renderError(err)
	}
	return fmt.Sprintf("Removed %s and its history.", args[0])
}

func (h *Handler) handleEmoji(args []string) string {
	if len(args) != 2 {
		return "usage: /eggemoji <name> <emoji>"
	}
	if err := h.tracker.SetEmoji(args[0], args[1]); err != nil {
		return renderError(err)
	}
	return fmt.Sprintf("Set emoji for %s to %s.", args[0], args[1])
}

func (h *Handler) handleReset(args []string) string {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if err := h.tracker.ResetCounts(name); err != nil {
		return renderError(err)
	}
	if name == "" {
		return "Reset all counts."
	}
	return fmt.Sprintf("Reset %s.", name)
}

func (h *Handler) renderBreakdown(title string, perType map[string]int, total int) string {
	names := make([]string, 0, len(perType))
	for name := range perType {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(title)
	for _, name := range names {
		fmt.Fprintf(&b, "\n%s %s: %d", h.tracker.Registry.Emoji(name), h.label(name), perType[name])
	}
	fmt.Fprintf(&b, "\nTOTAL: %d", total)
	return b.String()
}

func (h *Handler) label(name string) string {
	if t, ok := h.tracker.Registry.Get(name); ok {
		return t.Label()
	}
	return name
}

func renderError(err error) string {
	switch {
	case errors.Is(err, egg.ErrUnknownType):
		return "Unknown egg type."
	case errors.Is(err, egg.ErrDuplicateType):
		return "That egg type already exists."
	case errors.Is(err, egg.ErrInvalidRule):
		return fmt.Sprintf("Invalid pattern: %v", err)
	case errors.Is(err, egg.ErrChannelUnavailable):
		return "History is unavailable right now, try again later."
	case errors.Is(err, egg.ErrPersistence):
		return "Storage is unavailable right now, try again later."
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
