package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farbod-bigdeli/banking-2pc/pkg/participant"
	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// NewParticipantServer builds the HTTP server for a participant node:
// the three protocol operations plus the committed-account read path used
// by the surrounding services.
func NewParticipantServer(addr, nodeID string, h *participant.Handler, workers int64) *Server {
	return newServer(addr, ParticipantRouter(nodeID, h, workers))
}

// ParticipantRouter builds the participant route tree
func ParticipantRouter(nodeID string, h *participant.Handler, workers int64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(limitConcurrency(workers))

	r.Post("/prepare", func(w http.ResponseWriter, req *http.Request) {
		var body protocol.PrepareRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, &protocol.PrepareResponse{
				VoteCommit: false,
				Reason:     "invalid request body",
			})
			return
		}
		writeJSON(w, http.StatusOK, h.Prepare(&body))
	})

	r.Post("/commit", func(w http.ResponseWriter, req *http.Request) {
		var body protocol.CommitRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, &protocol.Ack{})
			return
		}
		writeJSON(w, http.StatusOK, h.Commit(body.TransactionID))
	})

	r.Post("/abort", func(w http.ResponseWriter, req *http.Request) {
		var body protocol.AbortRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, &protocol.Ack{})
			return
		}
		writeJSON(w, http.StatusOK, h.Abort(body.TransactionID))
	})

	r.Get("/accounts", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, &protocol.ListAccountsResponse{
			Success:  true,
			Accounts: h.Store().ListAccounts(),
		})
	})

	r.Get("/accounts/{accountID}", func(w http.ResponseWriter, req *http.Request) {
		acc, ok := h.Store().GetAccount(chi.URLParam(req, "accountID"))
		if !ok {
			writeJSON(w, http.StatusNotFound, &protocol.GetAccountResponse{
				Success: false,
				Message: "account not found",
			})
			return
		}
		writeJSON(w, http.StatusOK, &protocol.GetAccountResponse{
			Success: true,
			Account: &acc,
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, &protocol.HealthResponse{
			Status: "OK",
			NodeID: nodeID,
			Role:   "PARTICIPANT",
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
