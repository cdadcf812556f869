// Package faq serves the scripted question/answer documents attached to leaf
// menu categories and filters out questions a session has already seen.
package faq

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bizowl/support-assistant/internal/core/errx"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

// Reserved action ids injected into every FAQ option list. Question text is
// assumed never to equal one of these.
const (
	OptionBack     = "back"
	OptionPurchase = "purchase"
)

// NoMoreQuestions is appended to the bot message once the asked-set covers
// every entry in the category.
const NoMoreQuestions = "You've gone through all the questions in this category. Would you like to ask something else?"

// Entry is one question/answer pair. Presentation order is document order.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Library holds the FAQ documents, one per category, loaded once at startup.
// A category whose document failed to load stays in the library as broken:
// selecting it surfaces an in-chat error instead of crashing the process.
type Library struct {
	categories map[string][]Entry
	broken     map[string]error
}

// NewLibrary builds a library from already-decoded documents.
func NewLibrary(categories map[string][]Entry) *Library {
	return &Library{categories: categories, broken: map[string]error{}}
}

// LoadLibrary reads every *.json file under dir as one category document,
// keyed by the file's base name. Per-file failures are recorded, not fatal.
func LoadLibrary(dir string) (*Library, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errx.DataLoad(err, "faq directory unreadable")
	}

	lib := &Library{
		categories: make(map[string][]Entry, len(paths)),
		broken:     map[string]error{},
	}
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".json")
		data, err := os.ReadFile(p)
		if err != nil {
			logx.Error().Err(err).Str("category", id).Msg("failed to read faq document")
			lib.broken[id] = err
			continue
		}
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			logx.Error().Err(err).Str("category", id).Msg("failed to decode faq document")
			lib.broken[id] = err
			continue
		}
		lib.categories[id] = entries
	}
	return lib, nil
}

// Has reports whether category has a document, loadable or not. The menu
// navigator uses it to decide whether a terminal node enters FAQ browsing.
func (l *Library) Has(category string) bool {
	if _, ok := l.categories[category]; ok {
		return true
	}
	_, ok := l.broken[category]
	return ok
}

// Entries returns the category's question/answer pairs in document order.
func (l *Library) Entries(category string) ([]Entry, error) {
	if err, ok := l.broken[category]; ok {
		return nil, errx.DataLoad(err, fmt.Sprintf("questions for %q are unavailable right now", category))
	}
	entries, ok := l.categories[category]
	if !ok {
		return nil, errx.DataLoad(fmt.Errorf("category %q not found", category), fmt.Sprintf("questions for %q are unavailable right now", category))
	}
	return entries, nil
}

// Tracker renders FAQ options for a session, filtering the questions the
// session has already asked. The asked-set itself is owned by the session
// state; the tracker only ever adds to it.
type Tracker struct {
	lib *Library
}

func NewTracker(lib *Library) *Tracker {
	return &Tracker{lib: lib}
}

// Options returns the category's remaining question ids with the reserved
// actions appended. Question id is the question text.
func (t *Tracker) Options(category string, asked map[string]struct{}) ([]string, error) {
	entries, err := t.lib.Entries(category)
	if err != nil {
		return nil, err
	}
	opts := make([]string, 0, len(entries)+2)
	for _, e := range entries {
		if _, seen := asked[e.Question]; seen {
			continue
		}
		opts = append(opts, e.Question)
	}
	return append(opts, OptionPurchase, OptionBack), nil
}

// Answer records questionID into asked and returns its answer plus the
// updated option list. Once the asked-set covers every entry the answer
// carries the fixed no-more-questions marker instead of presenting an empty
// question list.
func (t *Tracker) Answer(category, questionID string, asked map[string]struct{}) (string, []string, error) {
	entries, err := t.lib.Entries(category)
	if err != nil {
		return "", nil, err
	}

	var answer string
	found := false
	for _, e := range entries {
		if e.Question == questionID {
			answer = e.Answer
			found = true
			break
		}
	}
	if !found {
		return "", nil, fmt.Errorf("unknown question %q in category %q", questionID, category)
	}

	asked[questionID] = struct{}{}

	opts, err := t.Options(category, asked)
	if err != nil {
		return "", nil, err
	}
	if len(opts) == 2 { // only reserved actions left
		answer = answer + "\n\n" + NoMoreQuestions
	}
	return answer, opts, nil
}
