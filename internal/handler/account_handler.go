package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"send2me-service/internal/moderation"
	"send2me-service/internal/publicurl"
	redisrepo "send2me-service/internal/repository/redis"
	"send2me-service/internal/service"
	"send2me-service/internal/util"
)

// AccountHandler handles link claiming and session introspection.
type AccountHandler struct {
	links *service.LinkService
	urls  *publicurl.Resolver
}

func NewAccountHandler(links *service.LinkService, urls *publicurl.Resolver) *AccountHandler {
	return &AccountHandler{links: links, urls: urls}
}

// RegisterRoutes registers the account routes.
func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Get("/session", h.Session)
	router.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Post("/link", h.ClaimLink)
	})
}

type claimPayload struct {
	Username string `json:"username"`
	Agree    bool   `json:"agree"`
}

func (p *claimPayload) valid() bool {
	length := utf8.RuneCountInString(p.Username)
	return length >= 3 && length <= 20
}

type claimResponse struct {
	OK        bool   `json:"ok"`
	PublicURL string `json:"publicUrl"`
}

// ClaimLink reserves a username for the authenticated caller.
func (h *AccountHandler) ClaimLink(w http.ResponseWriter, r *http.Request) {
	var payload claimPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || !payload.valid() {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	publicURL, err := h.links.Claim(r.Context(), PrincipalFrom(r.Context()), service.ClaimInput{
		Username: payload.Username,
		Agree:    payload.Agree,
		Origin:   r.Header.Get("Origin"),
	})
	if err != nil {
		status, message := claimFailure(err)
		respondWithError(w, status, message)
		return
	}

	respondWithJSON(w, http.StatusOK, claimResponse{OK: true, PublicURL: publicURL})
}

func claimFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrAgreementRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, redisrepo.ErrUsernameTaken):
		return http.StatusConflict, "Username already taken."
	}
	if violation, ok := moderation.AsViolation(err); ok {
		return http.StatusBadRequest, violation.Message
	}
	util.Error("Failed to create/update link", util.ErrorField(err))
	return http.StatusInternalServerError, "Unable to create link right now. Try again soon."
}

type sessionUser struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	LinkSlug string `json:"linkSlug,omitempty"`
	LinkURL  string `json:"linkUrl,omitempty"`
}

type sessionResponse struct {
	OK   bool         `json:"ok"`
	User *sessionUser `json:"user"`
}

// Session reports the caller's identity, or a null user for anonymous
// callers. Never an error status; the anonymous case is a valid answer.
func (h *AccountHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())
	if principal == nil {
		respondWithJSON(w, http.StatusOK, sessionResponse{OK: true, User: nil})
		return
	}

	user := &sessionUser{
		UID:      principal.UID,
		Email:    principal.Email,
		Username: principal.Username,
		LinkSlug: principal.LinkSlug,
	}
	if principal.LinkSlug != "" {
		base := h.urls.Resolve(r.Header.Get("Origin"), false)
		user.LinkURL = publicurl.BuildProfileURL(base, principal.LinkSlug)
	}

	respondWithJSON(w, http.StatusOK, sessionResponse{OK: true, User: user})
}
