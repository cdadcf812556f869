package faq

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bizowl/support-assistant/internal/core/errx"
)

func testLibrary() *Library {
	return NewLibrary(map[string][]Entry{
		"general_faqs": {
			{Question: "Q1", Answer: "A1"},
			{Question: "Q2", Answer: "A2"},
		},
	})
}

func TestOptionsIncludeReservedActions(t *testing.T) {
	tracker := NewTracker(testLibrary())
	opts, err := tracker.Options("general_faqs", map[string]struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Q1", "Q2", OptionPurchase, OptionBack}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("options = %v, want %v", opts, want)
	}
}

func TestAnswerRemovesQuestionFromOptions(t *testing.T) {
	tracker := NewTracker(testLibrary())
	asked := map[string]struct{}{}

	answer, opts, err := tracker.Answer("general_faqs", "Q1", asked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "A1" {
		t.Errorf("answer = %q, want A1", answer)
	}
	want := []string{"Q2", OptionPurchase, OptionBack}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("options after answer = %v, want %v", opts, want)
	}

	// The asked question never reappears on later renders.
	opts, err = tracker.Options("general_faqs", asked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range opts {
		if o == "Q1" {
			t.Error("answered question Q1 reappeared in options")
		}
	}
}

func TestAnswerAppendsNoMoreQuestionsMarker(t *testing.T) {
	tracker := NewTracker(testLibrary())
	asked := map[string]struct{}{}

	if _, _, err := tracker.Answer("general_faqs", "Q1", asked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answer, opts, err := tracker.Answer("general_faqs", "Q2", asked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(answer, NoMoreQuestions) {
		t.Errorf("exhausted category answer %q should end with the fixed marker", answer)
	}
	// Reserved actions remain instead of an empty option list.
	want := []string{OptionPurchase, OptionBack}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("options = %v, want %v", opts, want)
	}
}

func TestAnswerUnknownQuestion(t *testing.T) {
	tracker := NewTracker(testLibrary())
	if _, _, err := tracker.Answer("general_faqs", "nope", map[string]struct{}{}); err == nil {
		t.Fatal("expected error for unknown question id")
	}
}

func TestMissingCategoryIsDataLoadError(t *testing.T) {
	tracker := NewTracker(testLibrary())
	_, err := tracker.Options("no_such_category", map[string]struct{}{})
	if err == nil {
		t.Fatal("expected error for missing category")
	}
	if !errx.IsKind(err, errx.KindDataLoad) {
		t.Errorf("error kind = %v, want data_load", err)
	}
}

func TestLoadLibraryRecoversBrokenCategory(t *testing.T) {
	dir := t.TempDir()
	good := `[{"question": "Q1", "answer": "A1"}]`
	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := LoadLibrary(dir)
	if err != nil {
		t.Fatalf("a single broken category must not fail the load: %v", err)
	}
	if !lib.Has("good") || !lib.Has("bad") {
		t.Error("library should know both categories")
	}
	if _, err := lib.Entries("good"); err != nil {
		t.Errorf("good category should load: %v", err)
	}
	if _, err := lib.Entries("bad"); !errx.IsKind(err, errx.KindDataLoad) {
		t.Errorf("broken category should yield a data_load error, got %v", err)
	}
}
