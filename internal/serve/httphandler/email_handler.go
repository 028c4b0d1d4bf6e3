package httphandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/serve/httperror"
	"github.com/corvidmail/mail-backend/internal/serve/httpjson"
	"github.com/corvidmail/mail-backend/internal/services"
	"github.com/corvidmail/mail-backend/internal/validators"
)

type EmailHandler struct {
	EmailService *services.EmailService
	Models       *data.Models
	Validator    *validator.Validate
	AppTracker   apptracker.AppTracker
}

type createEmailRequest struct {
	Subject    string    `json:"subject"`
	From       string    `json:"from" validate:"required"`
	To         []string  `json:"to" validate:"required,min=1"`
	Cc         []string  `json:"cc"`
	Bcc        []string  `json:"bcc"`
	Keywords   []string  `json:"keywords"`
	SizeBytes  int64     `json:"sizeBytes" validate:"gte=0"`
	ReceivedAt time.Time `json:"receivedAt" validate:"required"`
	MailboxIDs []string  `json:"mailboxIds" validate:"required,min=1"`
	ThreadID   string    `json:"threadId"`
}

func (h EmailHandler) Create(w http.ResponseWriter, r *http.Request) {
	var reqBody createEmailRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	accountID := chi.URLParam(r, "accountID")
	email, err := h.EmailService.Create(r.Context(), accountID, services.CreateEmailInput{
		Subject:    reqBody.Subject,
		From:       reqBody.From,
		To:         reqBody.To,
		Cc:         reqBody.Cc,
		Bcc:        reqBody.Bcc,
		Keywords:   reqBody.Keywords,
		SizeBytes:  reqBody.SizeBytes,
		ReceivedAt: reqBody.ReceivedAt,
		MailboxIDs: reqBody.MailboxIDs,
		ThreadID:   reqBody.ThreadID,
	})
	if err != nil {
		httperror.InternalServerError(r.Context(), "creating email", err, h.AppTracker).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusCreated, email)
}

func (h EmailHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	emailID := chi.URLParam(r, "emailID")
	email, err := h.Models.Emails.Get(r.Context(), accountID, emailID)
	if err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "getting email", err, h.AppTracker).Render(w)
		return
	}
	httpjson.Render(w, email)
}

type updateKeywordsRequest struct {
	Keywords []string `json:"keywords" validate:"required"`
}

func (h EmailHandler) UpdateKeywords(w http.ResponseWriter, r *http.Request) {
	var reqBody updateKeywordsRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	accountID := chi.URLParam(r, "accountID")
	emailID := chi.URLParam(r, "emailID")
	if err := h.EmailService.UpdateKeywords(r.Context(), accountID, emailID, reqBody.Keywords); err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "updating email keywords", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveEmailRequest struct {
	FromMailboxID string `json:"fromMailboxId" validate:"required"`
	ToMailboxID   string `json:"toMailboxId" validate:"required"`
}

func (h EmailHandler) Move(w http.ResponseWriter, r *http.Request) {
	var reqBody moveEmailRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	accountID := chi.URLParam(r, "accountID")
	emailID := chi.URLParam(r, "emailID")
	if err := h.EmailService.Move(r.Context(), accountID, emailID, reqBody.FromMailboxID, reqBody.ToMailboxID); err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "moving email", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h EmailHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	emailID := chi.URLParam(r, "emailID")
	if err := h.EmailService.Destroy(r.Context(), accountID, emailID); err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "destroying email", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
