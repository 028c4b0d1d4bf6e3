package httphandler

import (
	"net/http"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/serve/httpjson"
)

type HealthHandler struct {
	Models *data.Models
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Models.Accounts.DB.Ping(r.Context()); err != nil {
		httpjson.RenderStatus(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
		return
	}
	httpjson.Render(w, healthResponse{Status: "healthy"})
}
