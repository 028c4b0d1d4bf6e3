package httphandler

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/serve/httperror"
	"github.com/corvidmail/mail-backend/internal/serve/httpjson"
	"github.com/corvidmail/mail-backend/internal/services"
	"github.com/corvidmail/mail-backend/internal/validators"
)

type MailboxHandler struct {
	MailboxService *services.MailboxService
	Models         *data.Models
	Validator      *validator.Validate
	AppTracker     apptracker.AppTracker
}

type createMailboxRequest struct {
	Name      string  `json:"name" validate:"required"`
	Role      *string `json:"role"`
	ParentID  *string `json:"parentId"`
	SortOrder int     `json:"sortOrder" validate:"gte=0"`
}

func (h MailboxHandler) Create(w http.ResponseWriter, r *http.Request) {
	var reqBody createMailboxRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}
	if err := h.Validator.Struct(reqBody); err != nil {
		httperror.BadRequest("Validation error", validators.ParseValidationError(err)).Render(w)
		return
	}

	accountID := chi.URLParam(r, "accountID")
	mailbox, err := h.MailboxService.Create(r.Context(), accountID, services.CreateMailboxInput{
		Name:      reqBody.Name,
		Role:      reqBody.Role,
		ParentID:  reqBody.ParentID,
		SortOrder: reqBody.SortOrder,
	})
	if err != nil {
		httperror.InternalServerError(r.Context(), "creating mailbox", err, h.AppTracker).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusCreated, mailbox)
}

func (h MailboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	mailboxID := chi.URLParam(r, "mailboxID")
	mailbox, err := h.Models.Mailboxes.Get(r.Context(), accountID, mailboxID)
	if err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "getting mailbox", err, h.AppTracker).Render(w)
		return
	}
	httpjson.Render(w, mailbox)
}

type updateMailboxRequest struct {
	Name      *string `json:"name"`
	SortOrder *int    `json:"sortOrder"`
}

func (h MailboxHandler) Update(w http.ResponseWriter, r *http.Request) {
	var reqBody updateMailboxRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}

	accountID := chi.URLParam(r, "accountID")
	mailboxID := chi.URLParam(r, "mailboxID")
	err := h.MailboxService.Update(r.Context(), accountID, mailboxID, services.UpdateMailboxInput{
		Name:      reqBody.Name,
		SortOrder: reqBody.SortOrder,
	})
	if err != nil {
		if me, ok := entities.AsMethodError(err); ok {
			httperror.MethodError(me).Render(w)
			return
		}
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "updating mailbox", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h MailboxHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	mailboxID := chi.URLParam(r, "mailboxID")
	if err := h.MailboxService.Destroy(r.Context(), accountID, mailboxID); err != nil {
		if services.IsNotFound(err) {
			httperror.NotFound("").Render(w)
			return
		}
		httperror.InternalServerError(r.Context(), "destroying mailbox", err, h.AppTracker).Render(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
