package egg

import (
	"strings"

	"github.com/hatchline/eggwatch/internal/bus"
)

// ExtractText concatenates every text surface of a message in a fixed order:
// the body, then each embed's title, description and field name/value pairs,
// then embed image/thumbnail filenames, then attachment filenames. This is
// the only surface classification ever examines.
func ExtractText(msg *bus.InboundMessage) string {
	var parts []string
	if msg.Content != "" {
		parts = append(parts, msg.Content)
	}
	for _, e := range msg.Embeds {
		if e.Title != "" {
			parts = append(parts, e.Title)
		}
		if e.Description != "" {
			parts = append(parts, e.Description)
		}
		for _, f := range e.Fields {
			if f.Name != "" {
				parts = append(parts, f.Name)
			}
			if f.Value != "" {
				parts = append(parts, f.Value)
			}
		}
		if e.ImageName != "" {
			parts = append(parts, e.ImageName)
		}
		if e.ThumbName != "" {
			parts = append(parts, e.ThumbName)
		}
	}
	for _, name := range msg.Attachments {
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}

// Classifier counts rule matches against message text for every registered
// type. It drives both live counting and bulk history scans.
type Classifier struct {
	registry *Registry
}

func NewClassifier(r *Registry) *Classifier {
	return &Classifier{registry: r}
}

// CountMatches returns the number of non-overlapping matches of rule in text.
func (c *Classifier) CountMatches(text string, rule Rule) int {
	return rule.CountMatches(text)
}

// ClassifyAll counts matches of every registered type against text. It works
// off a registry snapshot taken at call start, so types registered while a
// call is in flight are not counted by that call.
func (c *Classifier) ClassifyAll(text string) map[string]int {
	snapshot := c.registry.Snapshot()
	counts := make(map[string]int, len(snapshot))
	for _, t := range snapshot {
		counts[t.Name] = t.Rule.CountMatches(text)
	}
	return counts
}
