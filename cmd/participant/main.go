package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/farbod-bigdeli/banking-2pc/pkg/metrics"
	"github.com/farbod-bigdeli/banking-2pc/pkg/participant"
	"github.com/farbod-bigdeli/banking-2pc/pkg/store"
	"github.com/farbod-bigdeli/banking-2pc/pkg/transport"
)

var opts struct {
	NodeID            string        `long:"node-id" env:"NODE_ID" default:"participant-1" description:"Node identifier used in log lines"`
	Port              int           `long:"port" env:"PORT" default:"5004" description:"TCP port for the RPC listener"`
	Coordinator       string        `long:"coordinator" env:"COORDINATOR_ADDR" description:"Coordinator host:port; enables the pending-reservation reconciler"`
	ReconcileInterval time.Duration `long:"reconcile-interval" env:"RECONCILE_INTERVAL" default:"10s" description:"How often stale reservations are swept"`
	ReconcileMinAge   time.Duration `long:"reconcile-min-age" env:"RECONCILE_MIN_AGE" default:"30s" description:"Reservation age before the reconciler touches it"`
	RPCTimeout        time.Duration `long:"rpc-timeout" env:"RPC_TIMEOUT" default:"2s" description:"Deadline for outcome queries"`
	Workers           int64         `long:"workers" env:"WORKERS" default:"10" description:"Bounded request-handler parallelism"`
	LogLevel          string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(opts.LogLevel); err == nil {
		log.SetLevel(level)
	}

	st := store.New()
	handler := participant.NewHandler(opts.NodeID, st, log)
	metrics.RegisterStoreGauges(st.CommittedCount, st.PendingCount)

	server := transport.NewParticipantServer(fmt.Sprintf(":%d", opts.Port), opts.NodeID, handler, opts.Workers)

	var reconciler *participant.Reconciler
	if opts.Coordinator != "" {
		client := transport.NewClient(opts.RPCTimeout)
		reconciler = participant.NewReconciler(handler, client, opts.Coordinator,
			opts.ReconcileInterval, opts.ReconcileMinAge, log)
		reconciler.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down participant")
		if reconciler != nil {
			reconciler.Stop()
		}
		server.Stop()
	}()

	log.WithFields(logrus.Fields{
		"node_id": opts.NodeID,
		"port":    opts.Port,
	}).Info("participant ready")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("participant server failed")
	}
}
