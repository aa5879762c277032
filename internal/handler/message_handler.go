package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"send2me-service/internal/model"
	"send2me-service/internal/moderation"
	"send2me-service/internal/service"
	"send2me-service/internal/util"
)

// MessageHandler handles message intake and inbox reads.
type MessageHandler struct {
	intake *service.IntakeService
	inbox  *service.InboxService
}

func NewMessageHandler(intake *service.IntakeService, inbox *service.InboxService) *MessageHandler {
	return &MessageHandler{intake: intake, inbox: inbox}
}

// RegisterRoutes registers the message routes.
func (h *MessageHandler) RegisterRoutes(router chi.Router) {
	router.Post("/send", h.Send)
	router.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/stats", h.MessageStats)
	})
}

type sendPayload struct {
	To             string `json:"to"`
	Text           string `json:"text"`
	Anon           *bool  `json:"anon"`
	TurnstileToken string `json:"turnstileToken"`
}

func (p *sendPayload) valid() bool {
	toLen := utf8.RuneCountInString(p.To)
	textLen := utf8.RuneCountInString(p.Text)
	return toLen >= 3 && toLen <= 32 &&
		textLen >= 1 && textLen <= 500 &&
		len(p.TurnstileToken) >= 10
}

// Send handles message submission.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var payload sendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || !payload.valid() {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	// Senders stay anonymous unless they opt out.
	anon := true
	if payload.Anon != nil {
		anon = *payload.Anon
	}

	message, err := h.intake.Send(r.Context(), service.SendInput{
		To:             payload.To,
		Text:           payload.Text,
		Anon:           anon,
		TurnstileToken: payload.TurnstileToken,
		BearerToken:    util.BearerToken(r),
		IP:             util.ClientIP(r),
		UserAgent:      r.UserAgent(),
		Country:        countryHeader(r),
	})
	if err != nil {
		status, reason := sendFailure(err)
		respondWithError(w, status, reason)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	util.Info("Message accepted via HTTP",
		util.String("to_uid", message.ToUID),
		util.Bool("anon", message.Anon),
		util.Duration("duration", time.Since(startTime)),
	)
}

// sendFailure maps an intake error onto a status code and a user-facing
// message.
func sendFailure(err error) (int, string) {
	if botErr, ok := service.AsBotVerificationError(err); ok {
		return http.StatusBadRequest, botErr.Message
	}
	if errors.Is(err, service.ErrRecipientNotFound) {
		return http.StatusNotFound, err.Error()
	}
	if violation, ok := moderation.AsViolation(err); ok {
		return http.StatusBadRequest, violation.Message
	}
	if rlErr, ok := service.AsRateLimitError(err); ok {
		return http.StatusTooManyRequests, rlErr.Message
	}
	util.Error("Message intake failed", util.ErrorField(err))
	return http.StatusInternalServerError, "Unable to send the message right now. Please try again later."
}

type messageItem struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	Anon           bool      `json:"anon"`
	FromUsername   string    `json:"fromUsername,omitempty"`
	FromEmail      string    `json:"fromEmail,omitempty"`
	FromGivenName  string    `json:"fromGivenName,omitempty"`
	FromFamilyName string    `json:"fromFamilyName,omitempty"`
	FullName       string    `json:"fullName,omitempty"`
	Country        string    `json:"country,omitempty"`
	Device         string    `json:"device,omitempty"`
}

type listMessagesResponse struct {
	OK       bool          `json:"ok"`
	Messages []messageItem `json:"messages"`
}

// ListMessages returns the caller's inbox.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.inbox.List(r.Context(), PrincipalFrom(r.Context()),
		r.URL.Query().Get("filter"), limit)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		util.Error("Failed to list messages", util.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Unable to load messages right now.")
		return
	}

	items := make([]messageItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, messageItem{
			ID:             m.ID,
			Text:           m.Text,
			CreatedAt:      m.CreatedAt,
			Anon:           m.Anon,
			FromUsername:   m.FromUsername,
			FromEmail:      m.FromEmail,
			FromGivenName:  m.FromGivenName,
			FromFamilyName: m.FromFamilyName,
			FullName:       fullName(m),
			Country:        m.Meta.Country,
			Device:         m.Meta.Device,
		})
	}

	respondWithJSON(w, http.StatusOK, listMessagesResponse{OK: true, Messages: items})
}

type messageStatsResponse struct {
	OK    bool                `json:"ok"`
	Stats *model.MessageStats `json:"stats"`
}

// MessageStats returns the caller's inbox counts.
func (h *MessageHandler) MessageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.inbox.Stats(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		util.Error("Failed to load message stats", util.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Unable to load stats right now.")
		return
	}

	respondWithJSON(w, http.StatusOK, messageStatsResponse{OK: true, Stats: stats})
}

func fullName(m model.Message) string {
	parts := make([]string, 0, 2)
	if m.FromGivenName != "" {
		parts = append(parts, m.FromGivenName)
	}
	if m.FromFamilyName != "" {
		parts = append(parts, m.FromFamilyName)
	}
	return strings.Join(parts, " ")
}

func countryHeader(r *http.Request) string {
	if country := r.Header.Get("CF-IPCountry"); country != "" {
		return country
	}
	return r.Header.Get("X-Vercel-IP-Country")
}
