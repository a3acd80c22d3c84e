package egg

import (
	"errors"
	"sync"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	r := newTestRegistry(t)

	typ, err := r.Register("paradise", `(?i)\bparadise\b`, "🪺")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if typ.Name != "paradise" || typ.Emoji != "🪺" {
		t.Errorf("type = %+v", typ)
	}

	got, ok := r.Get("paradise")
	if !ok {
		t.Fatal("Get returned false")
	}
	if got.Rule.CountMatches("a paradise egg") != 1 {
		t.Error("registered rule does not match")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Register("bee", `(?i)\bbee\b`, ""); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	_, err := r.Register("bee", `(?i)\bbee\b`, "")
	if !errors.Is(err, ErrDuplicateType) {
		t.Errorf("err = %v, want ErrDuplicateType", err)
	}
}

func TestRegisterInvalidPatternLeavesNoResidue(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Register("broken", `(unclosed`, ""); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("err = %v, want ErrInvalidRule", err)
	}
	if _, ok := r.Get("broken"); ok {
		t.Error("rejected registration must not mutate the registry")
	}
}

func TestRegisterNameValidation(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"", "two words", "tab\tname"} {
		if _, err := r.Register(name, `x`, ""); err == nil {
			t.Errorf("Register(%q) should fail", name)
		}
	}
}

func TestAutoEmojiDeterministic(t *testing.T) {
	r := newTestRegistry(t)

	typ, err := r.Register("crystal", WordPattern("crystal"), "")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if typ.Emoji == "" {
		t.Fatal("fallback emoji not assigned")
	}
	if typ.Emoji != autoEmoji("crystal") {
		t.Errorf("emoji = %q, want deterministic %q", typ.Emoji, autoEmoji("crystal"))
	}
}

func TestDeregisterAndReRegister(t *testing.T) {
	st := newTestStore(t)
	r := NewRegistry(st)

	if _, err := r.Register("gem", WordPattern("gem"), ""); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := st.SaveLiveCount("gem", 7); err != nil {
		t.Fatalf("SaveLiveCount error: %v", err)
	}
	if err := st.UpsertRollup("2026-08-30", "gem", 3); err != nil {
		t.Fatalf("UpsertRollup error: %v", err)
	}

	if err := r.Deregister("gem"); err != nil {
		t.Fatalf("Deregister error: %v", err)
	}
	if err := r.Deregister("gem"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("second Deregister err = %v, want ErrUnknownType", err)
	}

	// Cascade must have removed the live count and rollup rows.
	counts, err := st.LoadLiveCounts()
	if err != nil {
		t.Fatalf("LoadLiveCounts error: %v", err)
	}
	if _, ok := counts["gem"]; ok {
		t.Error("live count row survived deregistration")
	}
	sums, err := st.SumRollups()
	if err != nil {
		t.Fatalf("SumRollups error: %v", err)
	}
	if _, ok := sums["gem"]; ok {
		t.Error("rollup rows survived deregistration")
	}

	// Re-registering the same name starts clean.
	if _, err := r.Register("gem", WordPattern("gem"), ""); err != nil {
		t.Fatalf("re-Register error: %v", err)
	}
}

func TestSetEmoji(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SetEmoji("nope", "💎"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}

	if _, err := r.Register("gem", WordPattern("gem"), ""); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.SetEmoji("gem", "💎"); err != nil {
		t.Fatalf("SetEmoji error: %v", err)
	}
	if err := r.SetEmoji("gem", "💎"); err != nil {
		t.Fatalf("SetEmoji should be idempotent: %v", err)
	}
	if got := r.Emoji("gem"); got != "💎" {
		t.Errorf("Emoji = %q, want 💎", got)
	}
}

func TestLoadSurvivesRestart(t *testing.T) {
	st := newTestStore(t)
	r := NewRegistry(st)

	if _, err := r.Register("bee", `(?i)\bbee\b`, "🐝"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	fresh := NewRegistry(st)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	typ, ok := fresh.Get("bee")
	if !ok {
		t.Fatal("type missing after reload")
	}
	if typ.Emoji != "🐝" {
		t.Errorf("emoji = %q after reload", typ.Emoji)
	}
	if typ.Rule.CountMatches("bee bee") != 2 {
		t.Error("rule does not match after reload")
	}
}

func TestAutoDiscover(t *testing.T) {
	r := newTestRegistry(t)

	added := r.AutoDiscover("Crystalegg spotted near the eggStorm, also ___egg and egg___")
	if len(added) != 2 {
		t.Fatalf("added = %v, want [crystal storm]", added)
	}

	typ, ok := r.Get("crystal")
	if !ok {
		t.Fatal("crystal not registered")
	}
	if typ.Rule.CountMatches("a CRYSTAL shard") != 1 {
		t.Error("discovered rule must match the whole word case-insensitively")
	}
	if _, ok := r.Get("storm"); !ok {
		t.Error("storm not registered from egg<word> form")
	}

	// Already-registered candidates are skipped.
	if added := r.AutoDiscover("crystalegg again"); len(added) != 0 {
		t.Errorf("re-discovery added %v", added)
	}
}

func TestAutoDiscoverConcurrentSameCandidate(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AutoDiscover("mysteryegg hatched")
		}()
	}
	wg.Wait()

	if _, ok := r.Get("mystery"); !ok {
		t.Fatal("mystery not registered")
	}
	if got := len(r.Names()); got != 1 {
		t.Errorf("registered types = %d, want 1", got)
	}
}

func TestDiscoveryMentions(t *testing.T) {
	if got := DiscoveryMentions("Crystalegg and eggCRYSTAL and bare crystal", "crystal"); got != 2 {
		t.Errorf("mentions = %d, want 2 (bare word is the rule's job)", got)
	}
	if got := DiscoveryMentions("no egg words here", "crystal"); got != 0 {
		t.Errorf("mentions = %d, want 0", got)
	}
}

func TestRegisterStoreDown(t *testing.T) {
	st := newTestStore(t)
	r := NewRegistry(st)
	st.Close()

	_, err := r.Register("bee", `(?i)\bbee\b`, "")
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
	if _, ok := r.Get("bee"); ok {
		t.Error("type registered despite failed persist")
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"bee", "Bee Egg"},
		{"anti_bee", "Anti Bee Egg"},
		{"paradise", "Paradise Egg"},
	}
	for _, tt := range tests {
		typ := &EggType{Name: tt.name}
		if got := typ.Label(); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
