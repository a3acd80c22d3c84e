package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedType is one initial pattern definition from the seed file.
type SeedType struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Emoji   string `yaml:"emoji,omitempty"`
}

// LoadSeed reads the YAML seed file of initial egg types. A missing file is
// not an error; the tracker simply starts with whatever the store holds.
func LoadSeed(path string) ([]SeedType, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read seed file %q: %w", path, err)
	}

	var seeds []SeedType
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file %q: %w", path, err)
	}

	out := seeds[:0]
	for _, s := range seeds {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" || strings.ContainsAny(s.Name, " \t") {
			return nil, fmt.Errorf("seed file %q: invalid type name %q", path, s.Name)
		}
		if strings.TrimSpace(s.Pattern) == "" {
			return nil, fmt.Errorf("seed file %q: type %q has no pattern", path, s.Name)
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultSeed mirrors the pattern set the tracker originally shipped with.
func DefaultSeed() []SeedType {
	word := func(w string) string { return `(?i)\b` + w + `\b` }
	return []SeedType{
		{Name: "paradise", Pattern: word("paradise"), Emoji: "🪺"},
		{Name: "safari", Pattern: word("safari"), Emoji: "🐾"},
		{Name: "spooky", Pattern: word("spooky"), Emoji: "👻"},
		{Name: "summer", Pattern: word("summer"), Emoji: "🌴"},
		{Name: "bee", Pattern: word("bee"), Emoji: "🐝"},
		{Name: "anti_bee", Pattern: `(?i)\banti ?bee\b`, Emoji: "🚫🐝"},
		{Name: "night", Pattern: word("night"), Emoji: "🌙"},
		{Name: "bug", Pattern: word("bug"), Emoji: "🐛"},
		{Name: "jungle", Pattern: word("jungle"), Emoji: "🦜"},
		{Name: "gem", Pattern: word("gem"), Emoji: "💎"},
	}
}

// WriteSeed writes the seed list as YAML, used by onboarding.
func WriteSeed(path string, seeds []SeedType) error {
	data, err := yaml.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("marshal seed: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
