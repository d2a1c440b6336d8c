// Package trigger serves the internal dispatch trigger and the operator ledger view.
package trigger

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Service is the orchestrator surface the routes need.
type Service interface {
	Runner
	LedgerReader
}

// Register mounts the trigger routes on router. Authorization is applied by the
// caller's middleware chain.
func Register(router *mux.Router, svc Service) {
	router.Handle("/internal/reminders/dispatch", DispatchHandler{Svc: svc}).Methods(http.MethodPost)
	router.Handle("/internal/reminders/sessions/{sessionID}/ledger", LedgerHandler{Svc: svc}).Methods(http.MethodGet)
}
