package participant

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farbod-bigdeli/banking-2pc/pkg/metrics"
	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// OutcomeClient queries a coordinator for a recorded transaction decision
type OutcomeClient interface {
	TxOutcome(ctx context.Context, addr, txID string) (*protocol.TxOutcomeResponse, error)
}

// Reconciler periodically resolves reservations whose decision never
// arrived, by asking the coordinator's outcome endpoint. A coordinator
// crash between voting and decision otherwise leaves reservations prepared
// forever.
type Reconciler struct {
	handler     *Handler
	client      OutcomeClient
	coordinator string
	interval    time.Duration
	minAge      time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
	log         *logrus.Entry
}

// NewReconciler creates a reconciler sweeping the handler's store. minAge
// keeps it from racing decisions that are still in flight.
func NewReconciler(h *Handler, client OutcomeClient, coordinatorAddr string, interval, minAge time.Duration, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		handler:     h,
		client:      client,
		coordinator: coordinatorAddr,
		interval:    interval,
		minAge:      minAge,
		stopCh:      make(chan struct{}),
		log:         log.WithField("node_id", h.nodeID),
	}
}

// Start begins the sweep loop
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.run()
	r.log.WithField("interval", r.interval).Info("reconciler started")
}

// Stop stops the sweep loop and waits for it to exit
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.log.Info("reconciler stopped")
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep resolves every stale reservation for which the coordinator has a
// recorded decision. Unknown outcomes leave the reservation in place for a
// later sweep.
func (r *Reconciler) sweep() {
	stale := r.handler.store.PendingReservations(r.minAge)
	if len(stale) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	for _, res := range stale {
		outcome, err := r.client.TxOutcome(ctx, r.coordinator, res.TransactionID)
		if err != nil {
			r.log.WithError(err).WithField("tx_id", res.TransactionID).Warn("outcome query failed")
			continue
		}
		if !outcome.Known {
			continue
		}

		switch outcome.Decision {
		case protocol.DecisionCommit:
			r.handler.Commit(res.TransactionID)
		case protocol.DecisionAbort:
			r.handler.Abort(res.TransactionID)
		default:
			continue
		}

		metrics.ReconcileResolutionsTotal.WithLabelValues(string(outcome.Decision)).Inc()
		r.log.WithFields(logrus.Fields{
			"tx_id":   res.TransactionID,
			"outcome": outcome.Decision,
		}).Info("stale reservation resolved")
	}
}
