// Package filter screens chat text against a profanity dictionary.
package filter

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	goaway "github.com/TwiN/go-away"
	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var defaultWords []byte

// Checker reports whether text should be rejected.
type Checker interface {
	IsProfane(text string) bool
}

// WordList is the on-disk shape of a word list file.
type WordList struct {
	Words []string `yaml:"words"`
}

// Filter is a go-away detector whose dictionary is assembled from word
// lists. It is safe for concurrent use; words may be added while messages
// are being checked.
type Filter struct {
	mu       sync.RWMutex
	words    map[string]struct{}
	detector *goaway.ProfanityDetector
}

// New creates a Filter whose dictionary is words.
func New(words ...string) *Filter {
	f := &Filter{words: make(map[string]struct{})}
	f.Add(words...)
	return f
}

// Default creates a Filter seeded with the built-in word list.
func Default() (*Filter, error) {
	words, err := ParseWords(defaultWords)
	if err != nil {
		return nil, fmt.Errorf("filter: parse built-in list: %w", err)
	}
	return New(words...), nil
}

// DefaultWords returns the built-in word list.
func DefaultWords() ([]string, error) {
	return ParseWords(defaultWords)
}

// ParseWords decodes a YAML word list.
func ParseWords(data []byte) ([]string, error) {
	var list WordList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list.Words, nil
}

// LoadFile reads a YAML word list from path.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filter: read %s: %w", path, err)
	}
	words, err := ParseWords(data)
	if err != nil {
		return nil, fmt.Errorf("filter: parse %s: %w", path, err)
	}
	return words, nil
}

// Add extends the dictionary. Blank entries are ignored.
func (f *Filter) Add(words ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		f.words[w] = struct{}{}
	}
	f.rebuildLocked()
}

// Len returns the number of words in the dictionary.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.words)
}

// IsProfane reports whether text contains a dictionary word. Matching is
// go-away's: case, leetspeak and punctuation are normalised away, so
// "Sh!t" matches "shit", and go-away's false-positive list keeps words like
// "class" clear of "ass".
func (f *Filter) IsProfane(text string) bool {
	f.mu.RLock()
	detector := f.detector
	f.mu.RUnlock()
	if detector == nil {
		return false
	}
	return detector.IsProfane(text)
}

// rebuildLocked swaps in a detector for the current dictionary. Spaces are
// not stripped, so adjacent innocent words cannot combine into a match.
func (f *Filter) rebuildLocked() {
	if len(f.words) == 0 {
		f.detector = nil
		return
	}
	dict := make([]string, 0, len(f.words))
	for w := range f.words {
		dict = append(dict, w)
	}
	slices.Sort(dict)
	f.detector = goaway.NewProfanityDetector().
		WithSanitizeSpaces(false).
		WithCustomDictionary(dict, goaway.DefaultFalsePositives, nil)
}
