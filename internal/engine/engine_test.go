package engine

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/bizowl/support-assistant/internal/catalog"
	"github.com/bizowl/support-assistant/internal/chatstore"
	"github.com/bizowl/support-assistant/internal/faq"
)

const menuDoc = `{
  "menu": {
    "greeting": {
      "message": "Hi! How can we help you today?",
      "options": {
        "general_faqs": {
          "message": "Here are some frequently asked questions."
        },
        "services": {
          "message": "Which service are you interested in?",
          "options": {
            "web_development": {"message": "All about our web development offering."}
          }
        }
      }
    }
  }
}`

type stubGenerator struct {
	response string
	calls    int
}

func (s *stubGenerator) Generate(ctx context.Context, sessionID, query string) string {
	s.calls++
	return s.response
}

func (s *stubGenerator) Available() bool { return true }

func newTestEngine(t *testing.T, gen TextGenerator) *Engine {
	t.Helper()
	tree, err := catalog.Parse([]byte(menuDoc))
	if err != nil {
		t.Fatal(err)
	}
	lib := faq.NewLibrary(map[string][]faq.Entry{
		"general_faqs": {
			{Question: "Q1", Answer: "A1"},
			{Question: "Q2", Answer: "A2"},
		},
		"web_development": {
			{Question: "W1", Answer: "WA1"},
		},
	})
	store := chatstore.NewFallbackStore(chatstore.NewMemoryStore(), chatstore.NewMemoryStore())
	if gen == nil {
		gen = &stubGenerator{response: "generated"}
	}
	return New(tree, lib, store, gen, nil, Config{PurchaseBaseURL: "https://example.com/services"})
}

func TestBootstrapReturnsRootOptionsAndGreeting(t *testing.T) {
	e := newTestEngine(t, nil)
	resp, err := e.Bootstrap(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Error("bootstrap must establish a session id")
	}
	want := []string{"general_faqs", "services"}
	if !reflect.DeepEqual(resp.Options, want) {
		t.Errorf("options = %v, want %v", resp.Options, want)
	}
	if resp.Message != "Hi! How can we help you today?" {
		t.Errorf("message = %q", resp.Message)
	}
}

// Scenario from the testable properties: select general_faqs, answer Q1,
// verify Q1 disappears, then back restores the bootstrap view.
func TestFAQFlowAskThenBack(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, err := e.Bootstrap(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	sid := boot.SessionID

	resp, err := e.Advance(ctx, sid, "general_faqs", nil)
	if err != nil {
		t.Fatal(err)
	}
	wantOpts := []string{"Q1", "Q2", faq.OptionPurchase, faq.OptionBack}
	if !reflect.DeepEqual(resp.Options, wantOpts) {
		t.Errorf("faq options = %v, want %v", resp.Options, wantOpts)
	}

	resp, err = e.Advance(ctx, sid, "Q1", resp.Path)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "A1" {
		t.Errorf("answer = %q, want A1", resp.Message)
	}
	for _, o := range resp.Options {
		if o == "Q1" {
			t.Error("answered question Q1 still offered")
		}
	}

	resp, err = e.Advance(ctx, sid, faq.OptionBack, resp.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resp.Options, boot.Options) {
		t.Errorf("options after back = %v, want the bootstrap options %v", resp.Options, boot.Options)
	}
	if resp.Message != boot.Message {
		t.Errorf("message after back = %q, want the greeting", resp.Message)
	}
}

// The asked-set survives leaving and re-entering a category.
func TestAskedSetPersistsAcrossReentry(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "general_faqs", nil)
	resp, _ = e.Advance(ctx, sid, "Q1", resp.Path)
	resp, _ = e.Advance(ctx, sid, faq.OptionBack, resp.Path)
	resp, _ = e.Advance(ctx, sid, "general_faqs", resp.Path)

	want := []string{"Q2", faq.OptionPurchase, faq.OptionBack}
	if !reflect.DeepEqual(resp.Options, want) {
		t.Errorf("options after re-entry = %v, want %v", resp.Options, want)
	}
}

func TestExhaustedCategoryShowsMarker(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "general_faqs", nil)
	resp, _ = e.Advance(ctx, sid, "Q1", resp.Path)
	resp, _ = e.Advance(ctx, sid, "Q2", resp.Path)

	if !strings.HasSuffix(resp.Message, faq.NoMoreQuestions) {
		t.Errorf("message = %q, want the no-more-questions marker appended", resp.Message)
	}
	want := []string{faq.OptionPurchase, faq.OptionBack}
	if !reflect.DeepEqual(resp.Options, want) {
		t.Errorf("options = %v, want reserved actions only", resp.Options)
	}
}

// The purchase action exits FAQ browsing with a redirect target and leaves
// the asked-set untouched.
func TestPurchaseActionRedirects(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "general_faqs", nil)
	resp, _ = e.Advance(ctx, sid, "Q1", resp.Path)
	resp, _ = e.Advance(ctx, sid, faq.OptionPurchase, resp.Path)

	if resp.RedirectURL != "https://example.com/services?service=general_faqs" {
		t.Errorf("redirect = %q", resp.RedirectURL)
	}

	// Re-entering still filters Q1.
	resp, _ = e.Advance(ctx, sid, "general_faqs", resp.Path)
	for _, o := range resp.Options {
		if o == "Q1" {
			t.Error("purchase action must not clear the asked-set")
		}
	}
}

func TestNestedMenuNavigationAndBack(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "services", nil)
	if !reflect.DeepEqual(resp.Path, []string{"services"}) {
		t.Errorf("path = %v", resp.Path)
	}
	wantOpts := []string{"web_development", faq.OptionBack}
	if !reflect.DeepEqual(resp.Options, wantOpts) {
		t.Errorf("options = %v, want %v", resp.Options, wantOpts)
	}

	resp, _ = e.Advance(ctx, sid, faq.OptionBack, resp.Path)
	if len(resp.Path) != 0 {
		t.Errorf("path after back = %v, want root", resp.Path)
	}
	if !reflect.DeepEqual(resp.Options, boot.Options) {
		t.Errorf("options after back = %v, want root options", resp.Options)
	}
}

// Back pops the recorded path; a stale client-supplied path must not steer
// it somewhere else.
func TestBackPopsRecordedPath(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "services", nil)
	if !reflect.DeepEqual(resp.Path, []string{"services"}) {
		t.Fatalf("path = %v", resp.Path)
	}

	resp, err := e.Advance(ctx, sid, faq.OptionBack, []string{"services", "stale", "deeper"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Path) != 0 {
		t.Errorf("path after back = %v, want root", resp.Path)
	}
	if !reflect.DeepEqual(resp.Options, boot.Options) {
		t.Errorf("options after back = %v, want root options %v", resp.Options, boot.Options)
	}
}

// Concurrent turns on one session may interleave in any order, but the
// per-session state must stay intact: no panics, and the session still
// navigates normally afterward.
func TestConcurrentAdvanceSameSession(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	if _, err := e.Advance(ctx, sid, "general_faqs", nil); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.Advance(ctx, sid, "Q1", nil)
		}()
		go func() {
			defer wg.Done()
			_, _ = e.Advance(ctx, sid, "Q2", nil)
		}()
	}
	wg.Wait()

	resp, err := e.Advance(ctx, sid, faq.OptionBack, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resp.Options, boot.Options) {
		t.Errorf("options after concurrent turns = %v, want root options %v", resp.Options, boot.Options)
	}
}

// A stale path truncates to the deepest valid node instead of failing.
func TestInvalidPathTruncates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")

	resp, err := e.Advance(ctx, boot.SessionID, "no_such_key", []string{"also_bogus"})
	if err != nil {
		t.Fatalf("invalid path must not fail the turn: %v", err)
	}
	if len(resp.Path) != 0 {
		t.Errorf("path = %v, want truncation to root", resp.Path)
	}
	if !reflect.DeepEqual(resp.Options, boot.Options) {
		t.Errorf("options = %v, want root options", resp.Options)
	}
}

// Reset returns the root view regardless of depth reached before.
func TestResetIdempotence(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "general_faqs", nil)
	resp, _ = e.Advance(ctx, sid, "Q1", resp.Path)

	reset, err := e.Reset(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(reset.Options, boot.Options) {
		t.Errorf("options after reset = %v, want root options", reset.Options)
	}
	if reset.Message != boot.Message {
		t.Errorf("message after reset = %q, want greeting", reset.Message)
	}
	if reset.SessionID == sid {
		t.Error("reset should mint a fresh session id")
	}

	// The fresh session has a clean asked-set.
	resp, _ = e.Advance(ctx, reset.SessionID, "general_faqs", nil)
	want := []string{"Q1", "Q2", faq.OptionPurchase, faq.OptionBack}
	if !reflect.DeepEqual(resp.Options, want) {
		t.Errorf("options after reset = %v, want %v", resp.Options, want)
	}
}

func TestFreeTextPersistsBothHalves(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{response: "grounded answer"}
	e := newTestEngine(t, gen)
	boot, _ := e.Bootstrap(ctx, "")

	sid, resp, err := e.FreeText(ctx, boot.SessionID, "what do you offer?")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "grounded answer" {
		t.Errorf("response = %q", resp)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}

	history, err := e.store.ReadHistory(ctx, chatstore.ParseSessionID(sid), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Sender != chatstore.SenderUser || history[0].Content != "what do you offer?" {
		t.Errorf("user half = %+v", history[0])
	}
	if history[1].Sender != chatstore.SenderBot || history[1].Content != "grounded answer" {
		t.Errorf("bot half = %+v", history[1])
	}
}

func TestFreeTextEmptyInput(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{response: "never"}
	e := newTestEngine(t, gen)

	_, resp, err := e.FreeText(ctx, "", "   ")
	if err != nil {
		t.Fatal(err)
	}
	if resp != EmptyInputMessage {
		t.Errorf("response = %q, want the fixed empty-input message", resp)
	}
	if gen.calls != 0 {
		t.Error("empty input must not reach the generator")
	}
}

// Free text must not consume or alter the menu-tree state.
func TestFreeTextDoesNotTouchNavigationState(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	boot, _ := e.Bootstrap(ctx, "")
	sid := boot.SessionID

	resp, _ := e.Advance(ctx, sid, "general_faqs", nil)
	if _, _, err := e.FreeText(ctx, sid, "something unrelated"); err != nil {
		t.Fatal(err)
	}

	// Still in FAQ browsing: a question id resolves.
	resp, err := e.Advance(ctx, sid, "Q2", resp.Path)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "A2" {
		t.Errorf("answer after free text = %q, want A2", resp.Message)
	}
}

type recordingNotifier struct {
	err    error
	called bool
}

func (n *recordingNotifier) ContactRequested(ctx context.Context, c chatstore.Contact, sessionID string, history []chatstore.Message) error {
	n.called = true
	return n.err
}

func TestSubmitContactThankYou(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	notifier := &recordingNotifier{}
	e.notifier = notifier

	boot, _ := e.Bootstrap(ctx, "")
	_, msg, err := e.SubmitContact(ctx, boot.SessionID, chatstore.Contact{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if msg != ContactThanks {
		t.Errorf("message = %q, want the fixed thank-you", msg)
	}
	if !notifier.called {
		t.Error("notifier was not invoked")
	}
}

func TestSubmitContactNotifyFailureAnnotates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	e.notifier = &recordingNotifier{err: context.DeadlineExceeded}

	boot, _ := e.Bootstrap(ctx, "")
	_, msg, err := e.SubmitContact(ctx, boot.SessionID, chatstore.Contact{Name: "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg, ContactThanks) || !strings.Contains(msg, "issue with email notification") {
		t.Errorf("message = %q, want annotated thank-you", msg)
	}
}

// A category whose document failed to load is surfaced in-chat; the visitor
// stays at the parent level instead of getting an HTTP error.
func TestBrokenCategorySurfacesInChat(t *testing.T) {
	ctx := context.Background()
	tree, err := catalog.Parse([]byte(menuDoc))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "general_faqs.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := faq.LoadLibrary(dir)
	if err != nil {
		t.Fatal(err)
	}

	store := chatstore.NewFallbackStore(chatstore.NewMemoryStore(), chatstore.NewMemoryStore())
	e := New(tree, lib, store, &stubGenerator{}, nil, Config{})

	boot, _ := e.Bootstrap(ctx, "")
	resp, err := e.Advance(ctx, boot.SessionID, "general_faqs", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resp.Options, boot.Options) {
		t.Errorf("options = %v, want root options %v", resp.Options, boot.Options)
	}
	if !strings.Contains(resp.Message, "unavailable") {
		t.Errorf("message = %q, want an in-chat unavailability notice", resp.Message)
	}
}
