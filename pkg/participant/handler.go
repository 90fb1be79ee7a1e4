// Package participant implements the participant side of the account
// creation protocol: the Prepare/Commit/Abort handler and the background
// reconciler for reservations whose decision never arrived.
package participant

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
	"github.com/farbod-bigdeli/banking-2pc/pkg/store"
)

// Prepare reasons surfaced to the coordinator.
const (
	ReasonPrepared        = "prepared"
	ReasonAlreadyPrepared = "already prepared"
	ReasonEmailCommitted  = "email exists (committed)"
	ReasonEmailPending    = "email pending in another transaction"
)

// Handler serves the three protocol operations against the node's store.
// It additionally remembers terminal outcomes per transaction so a late
// contradictory decision can be logged instead of silently swallowed.
type Handler struct {
	nodeID string
	store  *store.Store
	log    *logrus.Entry

	mu       sync.Mutex
	outcomes map[string]protocol.Decision // tx_id -> terminal decision
}

// NewHandler creates a handler bound to a node's store
func NewHandler(nodeID string, st *store.Store, log *logrus.Logger) *Handler {
	return &Handler{
		nodeID:   nodeID,
		store:    st,
		log:      log.WithField("node_id", nodeID),
		outcomes: make(map[string]protocol.Decision),
	}
}

// Store returns the handler's backing store
func (h *Handler) Store() *store.Store {
	return h.store
}

// Prepare votes on an account-creation transaction. A retry for an already
// reserved transaction votes commit again without reinspecting the inputs
// and without consuming a new account id. A negative vote is a normal
// outcome, never an error.
func (h *Handler) Prepare(req *protocol.PrepareRequest) *protocol.PrepareResponse {
	entry := h.log.WithFields(logrus.Fields{
		"phase": protocol.PhaseVoting,
		"tx_id": req.TransactionID,
	})

	accountID, conflict := h.store.Reserve(req.TransactionID, req.AccountID, req.Name, req.Email, req.InitialBalance)
	switch conflict {
	case store.ConflictAlreadyReserved:
		entry.WithField("outcome", protocol.VoteCommit).Info("prepare retry, already reserved")
		return &protocol.PrepareResponse{VoteCommit: true, Reason: ReasonAlreadyPrepared}

	case store.ConflictEmailCommitted:
		entry.WithField("outcome", protocol.VoteAbort).Info("email held by committed account")
		return &protocol.PrepareResponse{VoteCommit: false, Reason: ReasonEmailCommitted}

	case store.ConflictEmailPending:
		entry.WithField("outcome", protocol.VoteAbort).Info("email reserved by another transaction")
		return &protocol.PrepareResponse{VoteCommit: false, Reason: ReasonEmailPending}
	}

	entry.WithFields(logrus.Fields{
		"outcome":    protocol.VoteCommit,
		"account_id": accountID,
	}).Info("reservation created")

	return &protocol.PrepareResponse{VoteCommit: true, Reason: ReasonPrepared}
}

// Commit promotes the reservation for txID into the committed table. It is
// idempotent and never fails: a commit for an unknown or already promoted
// transaction acks silently, a commit after a local abort is ignored with a
// warning.
func (h *Handler) Commit(txID string) *protocol.Ack {
	entry := h.log.WithFields(logrus.Fields{
		"phase": protocol.PhaseDecision,
		"tx_id": txID,
	})

	accountID, ok := h.store.Promote(txID)
	if ok {
		h.recordOutcome(txID, protocol.DecisionCommit)
		entry.WithFields(logrus.Fields{
			"outcome":    protocol.DecisionCommit,
			"account_id": accountID,
		}).Info("reservation committed")
		return &protocol.Ack{Acked: true}
	}

	if h.terminalOutcome(txID) == protocol.DecisionAbort {
		entry.Warn("commit for an aborted transaction ignored")
	} else {
		entry.Info("nothing to commit, acking")
	}

	return &protocol.Ack{Acked: true}
}

// Abort discards the reservation for txID. Idempotent, never fails. The
// allocated account id is not recycled.
func (h *Handler) Abort(txID string) *protocol.Ack {
	entry := h.log.WithFields(logrus.Fields{
		"phase": protocol.PhaseDecision,
		"tx_id": txID,
	})

	if h.store.Discard(txID) {
		h.recordOutcome(txID, protocol.DecisionAbort)
		entry.WithField("outcome", protocol.DecisionAbort).Info("reservation discarded")
		return &protocol.Ack{Acked: true}
	}

	if h.terminalOutcome(txID) == protocol.DecisionCommit {
		entry.Warn("abort for a committed transaction ignored")
	} else {
		entry.Info("nothing to abort, acking")
	}

	return &protocol.Ack{Acked: true}
}

func (h *Handler) recordOutcome(txID string, d protocol.Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.outcomes[txID]; !ok {
		h.outcomes[txID] = d
	}
}

func (h *Handler) terminalOutcome(txID string) protocol.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.outcomes[txID]; ok {
		return d
	}
	return protocol.DecisionUnknown
}
