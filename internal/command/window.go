package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hatchline/eggwatch/internal/egg"
)

// WindowKind classifies how a query window is answered.
type WindowKind int

const (
	// KindLive answers from the live counters without any replay.
	KindLive WindowKind = iota
	// KindAllTime answers by summing the persisted rollups.
	KindAllTime
	// KindRange answers by replaying the event source over a finite range.
	KindRange
)

// WindowSpec is a parsed "when" argument.
type WindowSpec struct {
	Kind   WindowKind
	Window egg.Window
	Label  string
}

var (
	hoursRe = regexp.MustCompile(`(\d+)\s*h`)
	daysRe  = regexp.MustCompile(`(\d+)\s*d`)
)

// ParseWindow interprets the "when" argument of a query: empty or "today"
// reads the live counters, "all" sums rollups, and everything else becomes a
// replay range anchored at now.
func ParseWindow(s string, now time.Time, loc *time.Location) WindowSpec {
	s = strings.ToLower(strings.TrimSpace(s))

	if s == "" || strings.Contains(s, "today") {
		return WindowSpec{Kind: KindLive, Label: "today"}
	}
	if s == "all" {
		return WindowSpec{Kind: KindAllTime, Window: egg.Window{AllTime: true}, Label: "all time"}
	}
	if strings.Contains(s, "24") {
		return rangeSpec(now.Add(-24*time.Hour), "last 24h")
	}
	if strings.Contains(s, "7") || strings.Contains(s, "week") {
		return rangeSpec(now.AddDate(0, 0, -7), "last 7 days")
	}
	if strings.Contains(s, "14") {
		return rangeSpec(now.AddDate(0, 0, -14), "last 14 days")
	}
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		return rangeSpec(now.Add(-time.Duration(h)*time.Hour), "last "+m[1]+"h")
	}
	if m := daysRe.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		return rangeSpec(now.AddDate(0, 0, -d), "last "+m[1]+" days")
	}
	// Anything unrecognized falls back to a replay of today so the caller
	// still gets a sane answer.
	return rangeSpec(egg.LocalMidnight(now, loc), "today")
}

func rangeSpec(since time.Time, label string) WindowSpec {
	return WindowSpec{
		Kind:   KindRange,
		Window: egg.Window{Since: since},
		Label:  label,
	}
}
