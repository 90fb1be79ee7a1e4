package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// AccountService is the coordinator surface exposed over HTTP
type AccountService interface {
	CreateAccount(ctx context.Context, req *protocol.CreateAccountRequest) *protocol.CreateAccountResponse
	Outcome(ctx context.Context, txID string) *protocol.TxOutcomeResponse
}

// NewCoordinatorServer builds the HTTP server for the coordinator: the
// client-facing account-creation endpoint plus the transaction outcome
// endpoint polled by participants.
func NewCoordinatorServer(addr string, coord AccountService, workers int64) *Server {
	return newServer(addr, CoordinatorRouter(coord, workers))
}

// CoordinatorRouter builds the coordinator route tree
func CoordinatorRouter(coord AccountService, workers int64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(limitConcurrency(workers))

	r.Post("/accounts", func(w http.ResponseWriter, req *http.Request) {
		var body protocol.CreateAccountRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, &protocol.CreateAccountResponse{
				Success: false,
				Message: "invalid request body",
			})
			return
		}

		resp := coord.CreateAccount(req.Context(), &body)
		status := http.StatusOK
		if !resp.Success {
			status = http.StatusConflict
		}
		writeJSON(w, status, resp)
	})

	r.Get("/transactions/{txID}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, coord.Outcome(req.Context(), chi.URLParam(req, "txID")))
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, &protocol.HealthResponse{
			Status: "OK",
			Role:   "COORDINATOR",
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
