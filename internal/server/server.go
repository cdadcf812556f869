// Package server exposes the conversation engine over HTTP. The wire shapes
// match the original widget contract: menu turns carry options/bot_response/
// path, free-text turns carry a single response field, and the session id
// travels in the chat_id cookie.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bizowl/support-assistant/internal/chatstore"
	"github.com/bizowl/support-assistant/internal/core/errx"
	"github.com/bizowl/support-assistant/internal/engine"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

const sessionCookie = "chat_id"

// voiceEmptyMessage differs from the typed-input one on purpose; the widget
// shows it when transcription produced nothing.
const voiceEmptyMessage = "I didn't catch that. Could you please try again?"

// Handler provides common handler utilities.
type Handler struct {
	eng         *engine.Engine
	mailEnabled bool
}

func NewHandler(eng *engine.Engine, mailEnabled bool) *Handler {
	return &Handler{eng: eng, mailEnabled: mailEnabled}
}

// Router assembles the full route table with the standard middleware stack.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", h.Index)
	r.Post("/get_menu_options", h.MenuOptions)
	r.Post("/process_custom_input", h.CustomInput)
	r.Post("/voice_input", h.VoiceInput)
	r.Post("/process_voice_input", h.VoiceInput)
	r.Post("/save_contact", h.SaveContact)
	r.Post("/reset", h.Reset)
	r.Get("/health", h.HealthCheck)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, "Endpoint not found")
	})
	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// fail maps an engine error onto the wire, preserving the safe message and
// status carried by the error when present.
func fail(w http.ResponseWriter, err error) {
	var appErr *errx.Error
	if errors.As(err, &appErr) {
		Error(w, appErr.Status, appErr.Message)
		return
	}
	logx.Error().Err(err).Msg("unclassified handler error")
	Error(w, http.StatusInternalServerError, errx.SystemErrorMessage)
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSession refreshes the chat_id cookie when the engine established or
// replaced the session.
func setSession(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// menuResponse is the scripted-turn wire shape.
type menuResponse struct {
	Options     []string `json:"options"`
	BotResponse string   `json:"bot_response"`
	Path        []string `json:"path"`
	RedirectURL string   `json:"redirect_url,omitempty"`
}

func toWire(t engine.TurnResponse) menuResponse {
	return menuResponse{
		Options:     t.Options,
		BotResponse: t.Message,
		Path:        t.Path,
		RedirectURL: t.RedirectURL,
	}
}

// Index bootstraps the conversation: it establishes the session and returns
// the root menu with the greeting.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	resp, err := h.eng.Bootstrap(r.Context(), sessionID(r))
	if err != nil {
		fail(w, err)
		return
	}
	setSession(w, resp.SessionID)
	JSON(w, http.StatusOK, toWire(resp))
}

type menuRequest struct {
	Option string   `json:"option"`
	Path   []string `json:"path"`
}

// MenuOptions applies one scripted transition.
func (h *Handler) MenuOptions(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.eng.Advance(r.Context(), sessionID(r), req.Option, req.Path)
	if err != nil {
		fail(w, err)
		return
	}
	setSession(w, resp.SessionID)
	JSON(w, http.StatusOK, toWire(resp))
}

type textRequest struct {
	Input string `json:"input"`
}

// CustomInput runs one grounded free-text turn.
func (h *Handler) CustomInput(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sid, response, err := h.eng.FreeText(r.Context(), sessionID(r), req.Input)
	if err != nil {
		fail(w, err)
		return
	}
	if sid != "" {
		setSession(w, sid)
	}
	JSON(w, http.StatusOK, map[string]string{"response": response})
}

// VoiceInput mirrors CustomInput for pre-transcribed speech; the frontend
// does the speech-to-text and sends plain text here.
func (h *Handler) VoiceInput(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sid, response, err := h.eng.FreeText(r.Context(), sessionID(r), req.Input)
	if err != nil {
		fail(w, err)
		return
	}
	if response == engine.EmptyInputMessage {
		JSON(w, http.StatusOK, map[string]any{
			"response":         voiceEmptyMessage,
			"success":          false,
			"transcribed_text": "",
		})
		return
	}
	if sid != "" {
		setSession(w, sid)
	}
	JSON(w, http.StatusOK, map[string]any{
		"response":         response,
		"success":          true,
		"transcribed_text": req.Input,
	})
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Issue string `json:"issue"`
}

func (c contactRequest) empty() bool {
	return c.Name == "" && c.Email == "" && c.Phone == "" && c.Issue == ""
}

func (c contactRequest) toContact() chatstore.Contact {
	return chatstore.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone, Issue: c.Issue}
}

// SaveContact stores contact details and notifies the support team. It is the
// one endpoint that requires an established session.
func (h *Handler) SaveContact(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		JSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Session error. Please refresh and try again.",
		})
		return
	}

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.empty() {
		JSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid contact information provided.",
		})
		return
	}

	_, message, err := h.eng.SubmitContact(r.Context(), sid, req.toContact())
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

// Reset discards the session and returns the root menu under a fresh id.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	resp, err := h.eng.Reset(r.Context(), sessionID(r))
	if err != nil {
		fail(w, err)
		return
	}
	setSession(w, resp.SessionID)
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"options": resp.Options,
		"message": "Chat session reset successfully",
	})
}

// HealthCheck reports component liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.eng.Health(r.Context())
	JSON(w, http.StatusOK, map[string]any{
		"status":              health.Status,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"store_connected":     health.RemoteStoreHealthy,
		"generator_available": health.GeneratorAvailable,
		"mail_configured":     h.mailEnabled,
	})
}
