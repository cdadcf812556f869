// Package dataset loads the static data files at startup: the knowledge
// corpus, the menu tree and the per-category FAQ documents.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bizowl/support-assistant/internal/catalog"
	"github.com/bizowl/support-assistant/internal/core/errx"
	"github.com/bizowl/support-assistant/internal/faq"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

type Config struct {
	Dir        string `envconfig:"DATA_DIR" default:"data"`
	CorpusFile string `envconfig:"CORPUS_FILE" default:"data.json"`
	MenuFile   string `envconfig:"MENU_FILE" default:"menu.json"`
	FAQDir     string `envconfig:"FAQ_DIR" default:"faq"`
}

// Dataset is everything loaded once at startup. Corpus and menu failures
// are fatal; a single broken FAQ category is carried as broken and surfaced
// in-chat when selected.
type Dataset struct {
	// Corpus is the knowledge document, re-serialized with indentation and
	// otherwise treated as opaque grounding context.
	Corpus string
	Menu   *catalog.Tree
	FAQ    *faq.Library
}

func Load(cfg Config) (*Dataset, error) {
	corpus, err := loadCorpus(filepath.Join(cfg.Dir, cfg.CorpusFile))
	if err != nil {
		return nil, err
	}

	menuData, err := os.ReadFile(filepath.Join(cfg.Dir, cfg.MenuFile))
	if err != nil {
		return nil, errx.DataLoad(err, "menu document missing")
	}
	menu, err := catalog.Parse(menuData)
	if err != nil {
		return nil, err
	}

	lib, err := faq.LoadLibrary(filepath.Join(cfg.Dir, cfg.FAQDir))
	if err != nil {
		return nil, err
	}

	logx.Info().Msg("data files loaded successfully")
	return &Dataset{Corpus: corpus, Menu: menu, FAQ: lib}, nil
}

// loadCorpus validates the corpus is JSON of arbitrary shape and normalizes
// its serialization for prompt embedding.
func loadCorpus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errx.DataLoad(err, "corpus document missing")
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", errx.DataLoad(err, "corpus document malformed")
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errx.DataLoad(err, "corpus document malformed")
	}
	return string(out), nil
}
