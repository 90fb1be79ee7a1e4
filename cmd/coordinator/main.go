package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/farbod-bigdeli/banking-2pc/pkg/coordinator"
	"github.com/farbod-bigdeli/banking-2pc/pkg/transport"
	"github.com/farbod-bigdeli/banking-2pc/pkg/txlog"
)

var opts struct {
	Port         int           `long:"port" env:"PORT" default:"5001" description:"TCP port for the coordinator listener"`
	Participants string        `long:"participants" env:"PARTICIPANTS" required:"true" description:"Ordered comma-separated participant host:port list"`
	RPCTimeout   time.Duration `long:"rpc-timeout" env:"RPC_TIMEOUT" default:"2s" description:"Per-call deadline for prepare/commit/abort"`
	DSN          string        `long:"dsn" env:"POSTGRES_DSN" description:"Postgres DSN for the durable decision log; in-memory when unset"`
	Workers      int64         `long:"workers" env:"WORKERS" default:"10" description:"Bounded request-handler parallelism"`
	LogLevel     string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(opts.LogLevel); err == nil {
		log.SetLevel(level)
	}

	participants := make([]string, 0)
	for _, addr := range strings.Split(opts.Participants, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			participants = append(participants, addr)
		}
	}
	if len(participants) == 0 {
		log.Warn("no participants configured, transactions will commit without replication")
	}

	var decisions txlog.Log = txlog.NewMemoryLog()
	if opts.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pg, err := txlog.OpenPostgres(ctx, opts.DSN)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("failed to open decision log")
		}
		defer pg.Close()
		decisions = pg
		log.Info("using postgres decision log")
	}

	client := transport.NewClient(opts.RPCTimeout)
	coord := coordinator.New(participants, client, decisions, log)
	server := transport.NewCoordinatorServer(fmt.Sprintf(":%d", opts.Port), coord, opts.Workers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down coordinator")
		server.Stop()
	}()

	log.WithFields(logrus.Fields{
		"port":         opts.Port,
		"participants": participants,
	}).Info("coordinator ready")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("coordinator server failed")
	}
}
