package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"architect/internal/domain/lead"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
	"architect/internal/results"
	id "architect/internal/utils/id"
)

type apiHandler struct {
	deps   RouterDeps
	cfg    RouterConfig
	logger logging.Logger
}

type answerRequest struct {
	Option *int `json:"option"`
}

type focusRequest struct {
	FocusArea string `json:"focus_area"`
}

type pivotRequest struct {
	DreamJob string `json:"dream_job"`
}

type postgradRequest struct {
	PostgradChoice string `json:"postgrad_choice"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type linkRequest struct {
	Email    string `json:"email"`
	Redirect string `json:"redirect"`
}

func (h *apiHandler) handleHealth(c *gin.Context) {
	status := "ok"
	body := gin.H{}
	if h.deps.Health != nil {
		if degraded := h.deps.Health.Degraded(); len(degraded) > 0 {
			status = "degraded"
			body["degraded"] = degraded
		}
	}
	if h.deps.Advisor != nil {
		body["advisor_breaker"] = h.deps.Advisor.Breaker().State().String()
	}
	body["status"] = status
	c.JSON(http.StatusOK, body)
}

func (h *apiHandler) handleCatalog(c *gin.Context) {
	respondOK(c, lead.DefaultCatalog(), "")
}

func (h *apiHandler) handleIntake(c *gin.Context) {
	var profile lead.Profile
	if !h.bind(c, &profile) {
		return
	}
	device := DeviceID(c)
	result, err := h.deps.Intake.Submit(c.Request.Context(), device, profile)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.deps.Quiz.Reset(device)
	h.deps.Results.Forget(device)
	respondOK(c, result, result.Redirect)
}

func (h *apiHandler) handleQuiz(c *gin.Context) {
	view, err := h.deps.Quiz.Mount(c.Request.Context(), DeviceID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, view, view.Redirect)
}

func (h *apiHandler) handleQuizAnswer(c *gin.Context) {
	var req answerRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Option == nil {
		respondError(c, h.logger, apperrors.NewValidationError("option", "Please choose one of the listed options."))
		return
	}
	view, err := h.deps.Quiz.Answer(c.Request.Context(), DeviceID(c), *req.Option)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, view, view.Redirect)
}

func (h *apiHandler) handleResults(c *gin.Context) {
	identity := h.identity(c)
	view, err := h.deps.Results.Mount(c.Request.Context(), DeviceID(c), identity)
	h.respondView(c, view, err)
}

func (h *apiHandler) handleFocus(c *gin.Context) {
	var req focusRequest
	if !h.bind(c, &req) {
		return
	}
	identity := h.identity(c)
	view, err := h.deps.Results.ToggleFocusArea(c.Request.Context(), DeviceID(c), identity, req.FocusArea)
	h.respondView(c, view, err)
}

func (h *apiHandler) handleRoadmap(c *gin.Context) {
	identity := h.identity(c)
	view, err := h.deps.Results.RequestRoadmap(c.Request.Context(), DeviceID(c), identity)
	h.respondView(c, view, err)
}

func (h *apiHandler) handlePivot(c *gin.Context) {
	var req pivotRequest
	if !h.bind(c, &req) {
		return
	}
	identity := h.identity(c)
	view, err := h.deps.Results.RequestPivot(c.Request.Context(), DeviceID(c), identity, req.DreamJob)
	h.respondView(c, view, err)
}

func (h *apiHandler) handlePostgrad(c *gin.Context) {
	var req postgradRequest
	if !h.bind(c, &req) {
		return
	}
	identity := h.identity(c)
	view, err := h.deps.Results.RequestPostgrad(c.Request.Context(), DeviceID(c), identity, req.PostgradChoice)
	h.respondView(c, view, err)
}

func (h *apiHandler) handleChat(c *gin.Context) {
	var req chatRequest
	if !h.bind(c, &req) {
		return
	}
	identity := h.identity(c)
	view, err := h.deps.Results.SendChatMessage(c.Request.Context(), DeviceID(c), identity, req.Message)
	h.respondView(c, view, err)
}

func (h *apiHandler) handleSignOut(c *gin.Context) {
	identity := h.identity(c)
	redirect, err := h.deps.Results.SignOut(c.Request.Context(), DeviceID(c), identity)
	h.clearSession(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, nil, redirect)
}

func (h *apiHandler) handleRetake(c *gin.Context) {
	identity := h.identity(c)
	redirect, err := h.deps.Results.Retake(c.Request.Context(), DeviceID(c), identity)
	h.clearSession(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, nil, redirect)
}

func (h *apiHandler) handleAuthLink(c *gin.Context) {
	var req linkRequest
	if !h.bind(c, &req) {
		return
	}
	message, err := h.deps.Auth.SignInWithEmailLink(c.Request.Context(), req.Email, req.Redirect)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"message": message}, "")
}

// handleAuthCallback redeems an emailed link. Browsers are redirected; JSON clients get the
// envelope.
func (h *apiHandler) handleAuthCallback(c *gin.Context) {
	signed, err := h.deps.Auth.CompleteLink(c.Request.Context(), c.Query("token"))
	if err != nil {
		if wantsJSON(c) {
			respondError(c, h.logger, err)
			return
		}
		_ = c.Error(err)
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookie.Name, signed.Token, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.SessionCookie.Secure, true)
	// Anonymous state from before sign-in no longer applies.
	h.deps.Results.Forget(DeviceID(c))

	if wantsJSON(c) {
		respondOK(c, gin.H{"email": signed.Session.Email, "expires_at": signed.Session.ExpiresAt}, signed.Redirect)
		return
	}
	c.Redirect(http.StatusSeeOther, signed.Redirect)
}

// identity resolves the session cookie. Invalid sessions fall back to the anonymous device
// and the cookie is dropped.
func (h *apiHandler) identity(c *gin.Context) results.Identity {
	if h.deps.Auth == nil {
		return results.Identity{}
	}
	token, err := c.Cookie(h.cfg.SessionCookie.Name)
	if err != nil || token == "" {
		return results.Identity{}
	}
	ctx := c.Request.Context()
	session, err := h.deps.Auth.CurrentSession(ctx, token)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUnauthorized) {
			logging.FromContext(ctx, h.logger).Warn("session lookup failed: %v", err)
		}
		h.clearSession(c)
		return results.Identity{}
	}
	c.Request = c.Request.WithContext(id.WithSessionID(ctx, session.ID))
	return results.Identity{SessionID: session.ID, Email: session.Email}
}

func (h *apiHandler) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookie.Name, "", -1, "/", "", h.cfg.SessionCookie.Secure, true)
}

func (h *apiHandler) respondView(c *gin.Context, view results.View, err error) {
	if err != nil {
		var data any
		if view.Program != "" {
			data = view
		}
		respondErrorWithData(c, h.logger, err, data)
		return
	}
	respondOK(c, view, "")
}

func (h *apiHandler) bind(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, APIResponse{Error: "Request body too large."})
			return false
		}
		respondError(c, h.logger, apperrors.NewValidationError("body", "Invalid request body."))
		return false
	}
	return true
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
