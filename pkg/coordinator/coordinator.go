// Package coordinator drives the two-phase account-creation protocol: it
// mints transaction and account ids, collects prepare votes from every
// configured participant, records the decision, and broadcasts it.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/farbod-bigdeli/banking-2pc/pkg/metrics"
	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
	"github.com/farbod-bigdeli/banking-2pc/pkg/transport"
	"github.com/farbod-bigdeli/banking-2pc/pkg/txlog"
)

// Coordinator runs account-creation transactions against a fixed, ordered
// list of participant endpoints. It holds no per-account state; the only
// thing it owns is the decision it has taken for each transaction.
type Coordinator struct {
	participants []string
	client       *transport.Client
	decisions    txlog.Log
	ids          *AccountIDAllocator
	log          *logrus.Entry
}

// New creates a coordinator. Duplicate endpoints are allowed and treated as
// independent votes.
func New(participants []string, client *transport.Client, decisions txlog.Log, log *logrus.Logger) *Coordinator {
	return &Coordinator{
		participants: participants,
		client:       client,
		decisions:    decisions,
		ids:          NewAccountIDAllocator(),
		log:          log.WithField("node_id", "coordinator"),
	}
}

// voteResult is one participant's outcome in the voting phase. Transport
// failures and deadline overruns are recorded as abort votes with the
// error preserved in the reason.
type voteResult struct {
	Endpoint   string
	VoteCommit bool
	Reason     string
}

// CreateAccount executes one 2PC transaction. It never returns an error:
// every outcome, including coordinator-local failures, is encoded in the
// response body.
func (c *Coordinator) CreateAccount(ctx context.Context, req *protocol.CreateAccountRequest) *protocol.CreateAccountResponse {
	txID := uuid.New().String()
	accountID := c.ids.Next()

	entry := c.log.WithFields(logrus.Fields{
		"phase": protocol.PhaseVoting,
		"tx_id": txID,
	})
	entry.WithField("email", req.Email).Info("starting account-creation transaction")

	votes := c.votingPhase(ctx, txID, accountID, req)

	allCommit := true
	for _, v := range votes {
		if v.VoteCommit {
			metrics.PrepareVotesTotal.WithLabelValues(string(protocol.VoteCommit)).Inc()
		} else {
			metrics.PrepareVotesTotal.WithLabelValues(string(protocol.VoteAbort)).Inc()
			allCommit = false
		}
	}

	entry = c.log.WithFields(logrus.Fields{
		"phase": protocol.PhaseDecision,
		"tx_id": txID,
	})

	if !allCommit {
		entry.WithField("outcome", protocol.DecisionAbort).Info("aborting transaction")
		metrics.TransactionsTotal.WithLabelValues(string(protocol.DecisionAbort)).Inc()

		reasons := abortSummary(votes)
		if err := c.decisions.Record(ctx, txID, protocol.DecisionAbort, reasons); err != nil {
			entry.WithError(err).Error("failed to record abort decision")
		}
		c.decisionPhase(ctx, txID, protocol.DecisionAbort)

		return &protocol.CreateAccountResponse{
			Success:       false,
			TransactionID: txID,
			Message:       "2PC abort: " + reasons,
		}
	}

	// The decision is written before it is broadcast, so a participant left
	// prepared can later resolve the transaction via the outcome endpoint.
	if err := c.decisions.Record(ctx, txID, protocol.DecisionCommit, ""); err != nil {
		entry.WithError(err).Error("failed to record commit decision, aborting")
		metrics.TransactionsTotal.WithLabelValues(string(protocol.DecisionAbort)).Inc()
		c.decisionPhase(ctx, txID, protocol.DecisionAbort)

		return &protocol.CreateAccountResponse{
			Success:       false,
			TransactionID: txID,
			Message:       "internal error: failed to record decision",
		}
	}

	entry.WithField("outcome", protocol.DecisionCommit).Info("committing transaction")
	metrics.TransactionsTotal.WithLabelValues(string(protocol.DecisionCommit)).Inc()
	c.decisionPhase(ctx, txID, protocol.DecisionCommit)

	return &protocol.CreateAccountResponse{
		Success:       true,
		Message:       "account created",
		TransactionID: txID,
		AccountID:     accountID,
		Name:          req.Name,
		Email:         req.Email,
		Balance:       req.InitialBalance,
		CreatedAt:     time.Now().UTC(),
	}
}

// Outcome returns the recorded decision for a transaction. Participants
// with stale prepared reservations poll this to resolve them.
func (c *Coordinator) Outcome(ctx context.Context, txID string) *protocol.TxOutcomeResponse {
	entry, ok, err := c.decisions.Lookup(ctx, txID)
	if err != nil {
		c.log.WithError(err).WithField("tx_id", txID).Error("decision lookup failed")
		ok = false
	}
	if !ok {
		return &protocol.TxOutcomeResponse{
			TransactionID: txID,
			Decision:      protocol.DecisionUnknown,
		}
	}

	return &protocol.TxOutcomeResponse{
		TransactionID: txID,
		Decision:      entry.Decision,
		Known:         true,
		Reason:        entry.Reason,
	}
}

// votingPhase sends prepare to all participants in parallel and collects
// one vote per endpoint. Zero participants yields zero votes, which decides
// COMMIT; a cluster with no replicas degenerates to an echo service rather
// than hanging.
func (c *Coordinator) votingPhase(ctx context.Context, txID, accountID string, req *protocol.CreateAccountRequest) []voteResult {
	results := make([]voteResult, len(c.participants))
	var wg sync.WaitGroup
	wg.Add(len(c.participants))

	for i, addr := range c.participants {
		go func(idx int, endpoint string) {
			defer wg.Done()

			resp, err := c.client.Prepare(ctx, endpoint, &protocol.PrepareRequest{
				TransactionID:  txID,
				AccountID:      accountID,
				Name:           req.Name,
				Email:          req.Email,
				InitialBalance: req.InitialBalance,
			})
			if err != nil {
				results[idx] = voteResult{
					Endpoint: endpoint,
					Reason:   fmt.Sprintf("RPC error: %v", err),
				}
				return
			}

			results[idx] = voteResult{
				Endpoint:   endpoint,
				VoteCommit: resp.VoteCommit,
				Reason:     resp.Reason,
			}
		}(i, addr)
	}

	wg.Wait()
	return results
}

// decisionPhase broadcasts the decision to every configured participant,
// including those that voted abort; aborting a never-reserved transaction
// is a no-op on the participant. Delivery failures are logged and do not
// change the client response.
func (c *Coordinator) decisionPhase(ctx context.Context, txID string, decision protocol.Decision) {
	var wg sync.WaitGroup
	wg.Add(len(c.participants))

	for _, addr := range c.participants {
		go func(endpoint string) {
			defer wg.Done()

			var err error
			if decision == protocol.DecisionCommit {
				_, err = c.client.Commit(ctx, endpoint, &protocol.CommitRequest{TransactionID: txID})
			} else {
				_, err = c.client.Abort(ctx, endpoint, &protocol.AbortRequest{TransactionID: txID})
			}

			if err != nil {
				c.log.WithFields(logrus.Fields{
					"phase":    protocol.PhaseDecision,
					"tx_id":    txID,
					"endpoint": endpoint,
					"outcome":  decision,
				}).WithError(err).Warn("decision delivery failed")
			}
		}(addr)
	}

	wg.Wait()
}

func abortSummary(votes []voteResult) string {
	parts := make([]string, 0, len(votes))
	for _, v := range votes {
		if !v.VoteCommit {
			parts = append(parts, fmt.Sprintf("%s -> %s", v.Endpoint, v.Reason))
		}
	}
	return strings.Join(parts, "; ")
}
