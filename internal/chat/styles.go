package chat

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Styles maps a lower-cased character name to extra voice instructions
type Styles map[string]string

// DefaultStyles returns the curated built-in styles
func DefaultStyles() Styles {
	return Styles{
		"dog":    "Speak like a loyal, playful dog: short enthusiastic sentences, affectionate tone, occasionally say 'woof' or 'arf' as an interjection. Keep language simple and joyful.",
		"luffy":  "Adopt a bold, energetic captain voice: optimistic, impulsive, uses exclamations, confident and adventurous. Keep responses upbeat and spirited.",
		"zoro":   "Use a stoic swordsman persona: concise, direct, focused on honor and training. Use short, clipped sentences and occasional references to swordsmanship or paths.",
		"itachi": "Respond in a calm, introspective tone: measured vocabulary, philosophical, slightly melancholic but wise. Use reflective sentences and subtle guidance.",
	}
}

// Lookup matches the exact name, ignoring case and surrounding spaces
func (s Styles) Lookup(name string) (string, bool) {
	style, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return style, ok && style != ""
}

type styleFile struct {
	Styles []struct {
		Name  string `yaml:"name"`
		Style string `yaml:"style"`
	} `yaml:"styles"`
}

// LoadStyles reads a YAML style file and layers it over the built-ins.
// An empty path returns the built-ins unchanged.
func LoadStyles(path string) (Styles, error) {
	styles := DefaultStyles()
	if path == "" {
		return styles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}
	extra, err := parseStyles(data)
	if err != nil {
		return nil, err
	}
	for name, style := range extra {
		styles[name] = style
	}
	return styles, nil
}

func parseStyles(data []byte) (Styles, error) {
	var f styleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse style file: %w", err)
	}

	styles := make(Styles, len(f.Styles))
	for i, entry := range f.Styles {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if name == "" {
			return nil, fmt.Errorf("style entry %d has no name", i)
		}
		styles[name] = strings.TrimSpace(entry.Style)
	}
	return styles, nil
}
