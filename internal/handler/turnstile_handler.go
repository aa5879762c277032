package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"send2me-service/internal/hashing"
	redisrepo "send2me-service/internal/repository/redis"
	"send2me-service/internal/service"
	"send2me-service/internal/turnstile"
	"send2me-service/internal/util"
)

// TurnstileHandler pre-verifies challenge tokens for the frontend and
// records the outcome per hashed IP.
type TurnstileHandler struct {
	verifier      service.BotVerifier
	verifications *redisrepo.VerificationStore
	hasher        *hashing.Hasher
}

func NewTurnstileHandler(verifier service.BotVerifier, verifications *redisrepo.VerificationStore, hasher *hashing.Hasher) *TurnstileHandler {
	return &TurnstileHandler{
		verifier:      verifier,
		verifications: verifications,
		hasher:        hasher,
	}
}

// RegisterRoutes registers the verification routes.
func (h *TurnstileHandler) RegisterRoutes(router chi.Router) {
	router.Post("/turnstile/verify", h.Verify)
	router.Get("/turnstile/status", h.Status)
}

type verifyPayload struct {
	Token string `json:"token"`
}

type verifyFailureResponse struct {
	OK     bool     `json:"ok"`
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

// Verify checks a Turnstile token against the provider.
func (h *TurnstileHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var payload verifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Token) < 10 {
		respondWithError(w, http.StatusBadRequest, "Invalid verification payload.")
		return
	}

	ip := util.ClientIP(r)
	result := h.verifier.Verify(r.Context(), payload.Token, turnstile.Options{IP: ip})

	h.recordOutcome(r, ip, result.Success)

	if !result.Success {
		message := turnstile.DescribeErrors(result.Errors)
		util.Warn("Turnstile verification API rejected token",
			util.Strings("errors", result.Errors))
		respondWithJSON(w, http.StatusBadRequest, verifyFailureResponse{
			OK:     false,
			Error:  message,
			Errors: result.Errors,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Status reports whether this client's IP already passed a challenge, so
// the frontend can skip re-rendering the widget. A failed record read is
// treated as not verified.
func (h *TurnstileHandler) Status(w http.ResponseWriter, r *http.Request) {
	verified := false
	if h.verifications != nil {
		ip := util.ClientIP(r)
		if ip == "" {
			ip = "anonymous"
		}
		record, err := h.verifications.Get(r.Context(), h.hasher.Hash(ip))
		if err != nil {
			util.Warn("Failed to fetch browser verification record", util.ErrorField(err))
		}
		verified = redisrepo.HasPassed(record)
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"verified": verified,
	})
}

// recordOutcome upserts the browser-verification record. Best effort: the
// verification response never depends on the record write.
func (h *TurnstileHandler) recordOutcome(r *http.Request, ip string, passed bool) {
	if h.verifications == nil {
		return
	}

	status := redisrepo.VerificationFailed
	if passed {
		status = redisrepo.VerificationPassed
	}
	if ip == "" {
		ip = "anonymous"
	}

	err := h.verifications.Upsert(r.Context(), redisrepo.UpsertInput{
		IPHash:        h.hasher.Hash(ip),
		RayID:         r.Header.Get("CF-Ray"),
		UserAgent:     r.UserAgent(),
		Status:        status,
		UserAgentData: clientHints(r),
	})
	if err != nil {
		util.Warn("Failed to record browser verification", util.ErrorField(err))
	}
}

// clientHints collects the structured user-agent headers the browser sends
// alongside the challenge.
func clientHints(r *http.Request) map[string]string {
	hints := map[string]string{
		"brands":          r.Header.Get("Sec-CH-UA"),
		"mobile":          r.Header.Get("Sec-CH-UA-Mobile"),
		"platform":        r.Header.Get("Sec-CH-UA-Platform"),
		"platformVersion": r.Header.Get("Sec-CH-UA-Platform-Version"),
		"architecture":    r.Header.Get("Sec-CH-UA-Arch"),
		"model":           r.Header.Get("Sec-CH-UA-Model"),
		"uaFullVersion":   r.Header.Get("Sec-CH-UA-Full-Version"),
		"bitness":         r.Header.Get("Sec-CH-UA-Bitness"),
	}
	return hints
}
