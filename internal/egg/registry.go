package egg

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hatchline/eggwatch/internal/store"
)

// autoEmojiPool is the palette used when a type is registered without an
// emoji. The pick is a deterministic hash of the name so the same name always
// lands on the same emoji.
var autoEmojiPool = []string{"💠", "🔮", "✨", "💎", "🧿", "🪄", "🪙", "🔹", "🔸", "🌟", "🥚"}

const FallbackEmoji = "🥚"

var tokenRe = regexp.MustCompile(`[a-z0-9_]+`)

// EggType is a named, independently countable pattern category.
type EggType struct {
	Name  string
	Rule  Rule
	Emoji string
}

// Label renders a human-readable name, e.g. "anti_bee" -> "Anti Bee Egg".
func (t *EggType) Label() string {
	words := strings.Split(t.Name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ") + " Egg"
}

// Registry owns the mapping from type name to matching rule and emoji. All
// mutations go through its mutex and are written through to the store.
type Registry struct {
	mu    sync.Mutex
	types map[string]*EggType
	store *store.Store
}

func NewRegistry(st *store.Store) *Registry {
	return &Registry{
		types: make(map[string]*EggType),
		store: st,
	}
}

// Load replaces in-memory state with the persisted types. Rows whose pattern
// no longer compiles are skipped with a warning rather than failing startup.
func (r *Registry) Load() error {
	rows, err := r.store.ListTypes()
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]*EggType, len(rows))
	for _, row := range rows {
		rule, err := Compile(row.Pattern)
		if err != nil {
			log.Printf("[registry] skipping %q: stored pattern does not compile: %v", row.Name, err)
			continue
		}
		r.types[row.Name] = &EggType{Name: row.Name, Rule: rule, Emoji: row.Emoji}
	}
	return nil
}

// Register adds a new type. The emoji is optional; when empty a deterministic
// fallback is assigned. No state changes on a rejected request.
func (r *Registry) Register(name, pattern, emoji string) (*EggType, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return nil, fmt.Errorf("%w: name %q must be non-empty without whitespace", ErrInvalidRule, name)
	}

	rule, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	if emoji == "" {
		emoji = autoEmoji(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}

	t := &EggType{Name: name, Rule: rule, Emoji: emoji}
	if err := r.store.SaveType(store.TypeRow{Name: name, Pattern: pattern, Emoji: emoji}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	r.types[name] = t
	return t, nil
}

// Deregister removes a type and cascades deletion of its live count row and
// all rollup rows for the name.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	if err := r.store.DeleteType(name); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	delete(r.types, name)
	return nil
}

// SetEmoji overwrites the emoji for an existing type. Idempotent.
func (r *Registry) SetEmoji(name, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.types[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	if err := r.store.SaveType(store.TypeRow{Name: name, Pattern: t.Rule.Pattern(), Emoji: emoji}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	t.Emoji = emoji
	return nil
}

// Get returns the type for name, if registered.
func (r *Registry) Get(name string) (*EggType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.types[name]
	return t, ok
}

// Emoji returns the display emoji for name, falling back to the generic egg.
func (r *Registry) Emoji(name string) string {
	if t, ok := r.Get(name); ok && t.Emoji != "" {
		return t.Emoji
	}
	return FallbackEmoji
}

// Snapshot returns the registered types as a point-in-time copy, sorted by
// name. Classification always iterates a snapshot, never the live map.
func (r *Registry) Snapshot() []*EggType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*EggType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	snapshot := r.Snapshot()
	names := make([]string, len(snapshot))
	for i, t := range snapshot {
		names[i] = t.Name
	}
	return names
}

// PersistAll rewrites every type row. The rollover re-runs this after a reset
// so type metadata survives even if an earlier write was lost.
func (r *Registry) PersistAll() error {
	for _, t := range r.Snapshot() {
		if err := r.store.SaveType(store.TypeRow{Name: t.Name, Pattern: t.Rule.Pattern(), Emoji: t.Emoji}); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	return nil
}

// AutoDiscover scans text for tokens of the form <word>egg or egg<word> and
// registers any candidate not yet known, with a whole-word case-insensitive
// rule. Returns the names newly registered. Discovery never fails: a losing
// racer on the same candidate observes the duplicate internally and moves on.
func (r *Registry) AutoDiscover(text string) []string {
	var added []string
	for _, token := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		base := discoveryBase(token)
		if base == "" {
			continue
		}
		if _, exists := r.Get(base); exists {
			continue
		}
		if _, err := r.Register(base, WordPattern(base), ""); err != nil {
			if errors.Is(err, ErrDuplicateType) {
				continue // concurrent discovery of the same candidate
			}
			log.Printf("[registry] auto-discover %q failed: %v", base, err)
			continue
		}
		added = append(added, base)
	}
	return added
}

// discoveryBase extracts the candidate type name embedded in an egg token
// ("crystalegg" -> "crystal", "eggstorm" -> "storm"), or "" when the token
// carries none.
func discoveryBase(token string) string {
	switch {
	case strings.HasSuffix(token, "egg"):
		return strings.Trim(token[:len(token)-3], "_")
	case strings.HasPrefix(token, "egg"):
		return strings.Trim(token[3:], "_")
	}
	return ""
}

// DiscoveryMentions counts the tokens of text whose embedded candidate is
// name. The ingestion path credits these to a freshly discovered type: the
// generated whole-word rule cannot match the compound token, but the message
// introducing an egg word must itself be counted.
func DiscoveryMentions(text, name string) int {
	n := 0
	for _, token := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if discoveryBase(token) == name {
			n++
		}
	}
	return n
}

func autoEmoji(name string) string {
	sum := 0
	for _, c := range name {
		sum += int(c)
	}
	return autoEmojiPool[sum%len(autoEmojiPool)]
}
