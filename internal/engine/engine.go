// Package engine implements the hybrid dialogue state machine: per turn it
// either walks the scripted menu tree, serves a cached FAQ answer, or
// delegates to grounded generation, persisting both halves of every turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bizowl/support-assistant/internal/catalog"
	"github.com/bizowl/support-assistant/internal/chatstore"
	"github.com/bizowl/support-assistant/internal/core/errx"
	"github.com/bizowl/support-assistant/internal/faq"
	"github.com/bizowl/support-assistant/internal/notify"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

// Fixed visitor-facing strings.
const (
	EmptyInputMessage = "I didn't receive any input. Could you please try again?"
	ContactThanks     = "Thank you! Our customer support team will contact you shortly."
	notifyFailSuffix  = " (Note: There was an issue with email notification, but your request has been saved.)"
	unknownQuestion   = "Please choose one of the listed questions."
)

// TextGenerator is the fail-open generation client. Generate never errors.
type TextGenerator interface {
	Generate(ctx context.Context, sessionID, query string) string
	Available() bool
}

// Config holds engine-level settings.
type Config struct {
	// PurchaseBaseURL is where the reserved purchase action redirects;
	// the selected category is appended as a query parameter.
	PurchaseBaseURL string `envconfig:"PURCHASE_BASE_URL" default:"https://www.bizzowl.com/services"`
	// HistoryWindow bounds history reads for contact notifications.
	HistoryWindow int `envconfig:"-"`
}

// TurnResponse is the envelope every scripted operation returns.
type TurnResponse struct {
	SessionID   string   `json:"session_id"`
	Options     []string `json:"options"`
	Message     string   `json:"message"`
	Path        []string `json:"path"`
	RedirectURL string   `json:"redirect_url,omitempty"`
}

// Engine orchestrates one conversational turn.
type Engine struct {
	menu     *catalog.Tree
	lib      *faq.Library
	tracker  *faq.Tracker
	store    chatstore.Store
	gen      TextGenerator
	notifier notify.Notifier
	cfg      Config

	states *states
}

func New(menu *catalog.Tree, lib *faq.Library, store chatstore.Store, gen TextGenerator, notifier notify.Notifier, cfg Config) *Engine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 15
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Engine{
		menu:     menu,
		lib:      lib,
		tracker:  faq.NewTracker(lib),
		store:    store,
		gen:      gen,
		notifier: notifier,
		cfg:      cfg,
		states:   newStates(),
	}
}

// ensureSession parses the caller-supplied id or establishes a new session.
func (e *Engine) ensureSession(ctx context.Context, raw string) (chatstore.SessionID, error) {
	if strings.TrimSpace(raw) != "" {
		return chatstore.ParseSessionID(raw), nil
	}
	return e.store.CreateSession(ctx)
}

// Bootstrap establishes a session and returns the root menu with the fixed
// greeting message.
func (e *Engine) Bootstrap(ctx context.Context, rawSession string) (TurnResponse, error) {
	id, err := e.ensureSession(ctx, rawSession)
	if err != nil {
		return TurnResponse{}, err
	}
	return e.rootResponse(id), nil
}

func (e *Engine) rootResponse(id chatstore.SessionID) TurnResponse {
	root := e.menu.Root()
	return TurnResponse{
		SessionID: id.String(),
		Options:   root.Options(),
		Message:   root.Message,
		Path:      []string{},
	}
}

// Advance applies one scripted transition: menu descent, back, FAQ answer
// or the reserved purchase action. Both the visitor's selection and the bot
// message are persisted.
func (e *Engine) Advance(ctx context.Context, rawSession, option string, path []string) (TurnResponse, error) {
	id, err := e.ensureSession(ctx, rawSession)
	if err != nil {
		return TurnResponse{}, err
	}
	st := e.states.get(id.String())

	st.mu.Lock()
	var resp TurnResponse
	if st.Category != "" {
		resp = e.advanceFAQ(st, option)
	} else {
		resp = e.advanceMenu(st, option, path)
	}
	st.mu.Unlock()
	resp.SessionID = id.String()

	e.record(ctx, id, fmt.Sprintf("Selected menu option: %s", option), resp.Message)
	return resp, nil
}

// advanceMenu walks the tree. The client-supplied path plus the selected
// option resolves leniently: an invalid step truncates to the deepest valid
// node, and the truncated path becomes the session's recorded path. Back
// pops the recorded path, not the client-supplied one.
func (e *Engine) advanceMenu(st *sessionState, option string, path []string) TurnResponse {
	var next []string
	if option == faq.OptionBack {
		if len(st.Path) > 0 {
			next = st.Path[:len(st.Path)-1]
		}
	} else {
		next = append(append([]string{}, path...), option)
	}

	res := e.menu.Resolve(next)
	if res.Truncated {
		logx.Warn().Strs("requested", next).Strs("resolved", res.Path).
			Msg("navigation path truncated to deepest valid node")
	}
	st.Path = res.Path

	// A terminal node backed by an FAQ document enters FAQ browsing.
	if res.Node.Terminal() && len(res.Path) > 0 {
		category := res.Path[len(res.Path)-1]
		if e.lib.Has(category) {
			return e.enterFAQ(st, category, res.Node.Message)
		}
	}

	opts := res.Node.Options()
	if len(res.Path) > 0 {
		opts = append(opts, faq.OptionBack)
	}
	return TurnResponse{Options: opts, Message: res.Node.Message, Path: st.Path}
}

func (e *Engine) enterFAQ(st *sessionState, category, message string) TurnResponse {
	opts, err := e.tracker.Options(category, st.asked(category))
	if err != nil {
		// A broken category document is surfaced in-chat, not crashed on;
		// the visitor stays at the parent level.
		logx.Error().Err(err).Str("category", category).Msg("faq category unavailable")
		if len(st.Path) > 0 {
			st.Path = st.Path[:len(st.Path)-1]
		}
		res := e.menu.Resolve(st.Path)
		parentOpts := res.Node.Options()
		if len(st.Path) > 0 {
			parentOpts = append(parentOpts, faq.OptionBack)
		}
		return TurnResponse{Options: parentOpts, Message: safeMessage(err), Path: st.Path}
	}
	st.Category = category
	return TurnResponse{Options: opts, Message: message, Path: st.Path}
}

// advanceFAQ handles selections while a category is active.
func (e *Engine) advanceFAQ(st *sessionState, option string) TurnResponse {
	switch option {
	case faq.OptionBack:
		return e.leaveFAQ(st, "")
	case faq.OptionPurchase:
		category := st.Category
		resp := e.leaveFAQ(st, fmt.Sprintf("Taking you to get started with %s.", category))
		resp.RedirectURL = e.purchaseURL(category)
		return resp
	default:
		answer, opts, err := e.tracker.Answer(st.Category, option, st.asked(st.Category))
		if err != nil {
			logx.Warn().Err(err).Str("category", st.Category).Msg("faq answer failed")
			current, optsErr := e.tracker.Options(st.Category, st.asked(st.Category))
			if optsErr != nil {
				return e.leaveFAQ(st, safeMessage(optsErr))
			}
			return TurnResponse{Options: current, Message: unknownQuestion, Path: st.Path}
		}
		st.Shown = append(st.Shown, faq.Entry{Question: option, Answer: answer})
		return TurnResponse{Options: opts, Message: answer, Path: st.Path}
	}
}

// leaveFAQ exits FAQ browsing, popping the category leaf off the recorded
// path. The asked-set is kept: answered questions stay filtered until reset.
func (e *Engine) leaveFAQ(st *sessionState, message string) TurnResponse {
	st.Category = ""
	if len(st.Path) > 0 {
		st.Path = st.Path[:len(st.Path)-1]
	}
	res := e.menu.Resolve(st.Path)
	st.Path = res.Path

	opts := res.Node.Options()
	if len(st.Path) > 0 {
		opts = append(opts, faq.OptionBack)
	}
	if message == "" {
		message = res.Node.Message
	}
	return TurnResponse{Options: opts, Message: message, Path: st.Path}
}

func (e *Engine) purchaseURL(category string) string {
	return e.cfg.PurchaseBaseURL + "?service=" + url.QueryEscape(category)
}

// FreeText runs one grounded-generation turn. The menu state is untouched:
// free text is reachable from any scripted state and returns to it.
func (e *Engine) FreeText(ctx context.Context, rawSession, input string) (string, string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return rawSession, EmptyInputMessage, nil
	}

	id, err := e.ensureSession(ctx, rawSession)
	if err != nil {
		return rawSession, "", err
	}

	e.record(ctx, id, input, "")
	response := e.gen.Generate(ctx, id.String(), input)
	e.record(ctx, id, "", response)

	return id.String(), response, nil
}

// SubmitContact stores the visitor's contact details, notifies the support
// team and confirms with the fixed thank-you message. Notification failure
// only annotates the confirmation; the request itself is already saved.
func (e *Engine) SubmitContact(ctx context.Context, rawSession string, c chatstore.Contact) (string, string, error) {
	id, err := e.ensureSession(ctx, rawSession)
	if err != nil {
		return rawSession, "", err
	}

	if err := e.store.SaveContact(ctx, id, c); err != nil {
		logx.Error().Err(err).Str("session_id", id.String()).Msg("failed to save contact info")
	}
	e.record(ctx, id, fmt.Sprintf("Contact information submitted: %s - %s - %s",
		orDefault(c.Name, "Unknown"), orDefault(c.Email, "No email"), orDefault(c.Phone, "No phone")), "")

	history, err := e.store.ReadHistory(ctx, id, e.cfg.HistoryWindow)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", id.String()).Msg("history unavailable for contact notification")
	}

	message := ContactThanks
	if err := e.notifier.ContactRequested(ctx, c, id.String(), history); err != nil {
		message += notifyFailSuffix
	}
	e.record(ctx, id, "", message)

	return id.String(), message, nil
}

// Reset clears the asked-sets, path and category selection, mints a fresh
// session and returns the root options with the fixed greeting.
func (e *Engine) Reset(ctx context.Context, rawSession string) (TurnResponse, error) {
	if rawSession != "" {
		e.states.drop(chatstore.ParseSessionID(rawSession).String())
	}

	id, err := e.store.CreateSession(ctx)
	if err != nil {
		return TurnResponse{}, err
	}
	logx.Info().Str("old_session_id", rawSession).Str("session_id", id.String()).Msg("chat session reset")
	return e.rootResponse(id), nil
}

// Health reports component liveness for the health endpoint.
type Health struct {
	Status             string `json:"status"`
	RemoteStoreHealthy bool   `json:"remote_store_healthy"`
	GeneratorAvailable bool   `json:"generator_available"`
}

type remoteHealthChecker interface {
	RemoteHealthy(ctx context.Context) bool
}

func (e *Engine) Health(ctx context.Context) Health {
	h := Health{Status: "healthy", GeneratorAvailable: e.gen.Available()}
	if c, ok := e.store.(remoteHealthChecker); ok {
		h.RemoteStoreHealthy = c.RemoteHealthy(ctx)
	}
	return h
}

// record persists the turn halves. Persistence failures are logged and
// absorbed; they never reach the visitor.
func (e *Engine) record(ctx context.Context, id chatstore.SessionID, userMsg, botMsg string) {
	if userMsg != "" {
		if err := e.store.Append(ctx, id, chatstore.Message{Content: userMsg, Sender: chatstore.SenderUser}); err != nil {
			logx.Error().Err(err).Str("session_id", id.String()).Msg("failed to persist user message")
		}
	}
	if botMsg != "" {
		if err := e.store.Append(ctx, id, chatstore.Message{Content: botMsg, Sender: chatstore.SenderBot}); err != nil {
			logx.Error().Err(err).Str("session_id", id.String()).Msg("failed to persist bot message")
		}
	}
}

func safeMessage(err error) string {
	var appErr *errx.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return errx.SystemErrorMessage
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
