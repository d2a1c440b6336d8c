package trigger

import (
	"context"
	"errors"
	"net/http"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/handler/http/respond"

	"github.com/gorilla/mux"
)

// LedgerReader returns the ledger of one session. It is satisfied by *reminder.Service.
type LedgerReader interface {
	SessionLedger(ctx context.Context, sessionID string) ([]entity.LedgerEntry, error)
}

// LedgerHandler shows what was sent for one session.
type LedgerHandler struct{ Svc LedgerReader }

func (h LedgerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if len(sessionID) > entity.MaxSessionIDLength {
		respond.Error(w, http.StatusBadRequest, respond.Public(errors.New("session id too long")))
		return
	}

	entries, err := h.Svc.SessionLedger(r.Context(), sessionID)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrInvalidInput) {
			code = http.StatusBadRequest
		}
		respond.Error(w, code, err)
		return
	}
	respond.JSON(w, http.StatusOK, newSessionLedgerDTO(sessionID, entries))
}
