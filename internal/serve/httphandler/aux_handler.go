package httphandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/serve/httperror"
	"github.com/corvidmail/mail-backend/internal/serve/httpjson"
	"github.com/corvidmail/mail-backend/internal/services"
	"github.com/corvidmail/mail-backend/internal/validators"
)

// AuxHandler serves the changes-only collections.
type AuxHandler struct {
	AuxService *services.AuxService
	Validator  *validator.Validate
	AppTracker apptracker.AppTracker
}

type createIdentityRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

func (h AuxHandler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var reqBody createIdentityRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	identity, err := h.AuxService.CreateIdentity(r.Context(), chi.URLParam(r, "accountID"), reqBody.Name, reqBody.Email)
	if err != nil {
		httperror.InternalServerError(r.Context(), "creating identity", err, h.AppTracker).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusCreated, identity)
}

func (h AuxHandler) DestroyIdentity(w http.ResponseWriter, r *http.Request) {
	err := h.AuxService.DestroyIdentity(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "identityID"))
	if err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "destroying identity", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createSubmissionRequest struct {
	EmailID    string     `json:"emailId" validate:"required"`
	IdentityID string     `json:"identityId" validate:"required"`
	SendAt     *time.Time `json:"sendAt"`
}

func (h AuxHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var reqBody createSubmissionRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	submission, err := h.AuxService.CreateSubmission(r.Context(), chi.URLParam(r, "accountID"), reqBody.EmailID, reqBody.IdentityID, reqBody.SendAt)
	if err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("email or identity not found").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "creating email submission", err, h.AppTracker).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusCreated, submission)
}

func (h AuxHandler) CancelSubmission(w http.ResponseWriter, r *http.Request) {
	err := h.AuxService.CancelSubmission(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "submissionID"))
	if err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "canceling email submission", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPushSubscriptionRequest struct {
	DeviceClientID string     `json:"deviceClientId" validate:"required"`
	URL            string     `json:"url" validate:"required,url"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

func (h AuxHandler) CreatePushSubscription(w http.ResponseWriter, r *http.Request) {
	var reqBody createPushSubscriptionRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	subscription, err := h.AuxService.CreatePushSubscription(r.Context(), chi.URLParam(r, "accountID"), reqBody.DeviceClientID, reqBody.URL, reqBody.ExpiresAt)
	if err != nil {
		httperror.InternalServerError(r.Context(), "creating push subscription", err, h.AppTracker).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusCreated, subscription)
}

func (h AuxHandler) DestroyPushSubscription(w http.ResponseWriter, r *http.Request) {
	err := h.AuxService.DestroyPushSubscription(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "destroying push subscription", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
