package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botlink.gg/internal/action"
	"botlink.gg/internal/config"
	"botlink.gg/internal/controller"
	"botlink.gg/internal/mailbox"
	"botlink.gg/internal/persistence/indexdb"
	"botlink.gg/internal/persistence/translog"
	"botlink.gg/internal/transport/inspect"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/botlink.yaml", "config path")
		actEvery   = flag.Int("act_every", 30, "send a random command every N poll cycles (0 = never)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[controller] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctrl := controller.New(mailbox.New(cfg.SendPath), logger)

	tlog := translog.NewWriter(cfg.TranscriptDir, logger)
	defer tlog.Close()
	ctrl.AddSink(tlog)

	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(cfg.IndexDBPath)
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		ctrl.AddSink(idx)
	}

	for _, a := range cfg.Agents {
		ctrl.AddPeer(a.TeamID, a.ID, mailbox.New(cfg.RecvPath(a.ID)))
	}

	var httpSrv *http.Server
	if cfg.InspectAddr != "" {
		srv := inspect.NewServer(ctrl, logger)
		ctrl.AddSink(srv)

		mux := http.NewServeMux()
		mux.HandleFunc("/v1/bootstrap", srv.BootstrapHandler())
		mux.HandleFunc("/v1/ws", srv.WSHandler())
		httpSrv = &http.Server{
			Addr:              cfg.InspectAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Printf("inspect on http://%s", cfg.InspectAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("inspect listen: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRateHz))
	defer ticker.Stop()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	rosterIndexed := false
	var cycles int
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ticker.C:
		}

		ctrl.PollOnce()
		cycles++

		if !ctrl.Ready() {
			continue
		}
		if !rosterIndexed {
			rosterIndexed = true
			if idx != nil {
				idx.UpsertRoster(ctrl.Status().Roster)
			}
		}

		if *actEvery > 0 && cycles%*actEvery == 0 {
			if err := sendRandomOrders(ctrl, cfg, r); err != nil {
				logger.Printf("send: %v", err)
			}
		}
	}

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
	}

	st := ctrl.Status()
	logger.Printf("stopped: sent=%d received=%d acks_pending=%d errors=%d",
		st.Stats.Sent, st.Stats.Received, len(st.PendingAcks), st.Stats.Errors)
}

// sendRandomOrders scatters every agent to a random point. A stand-in
// actor until a real policy drives the channel.
func sendRandomOrders(ctrl *controller.Controller, cfg config.Config, r *rand.Rand) error {
	b := action.NewBuilder()
	for _, a := range cfg.Agents {
		x := r.Float64()*8000 - 4000
		y := r.Float64()*8000 - 4000
		b.Player(a.TeamID, a.ID).MoveToLocation(x, y)
	}
	teams, err := b.Build()
	if err != nil {
		return err
	}
	_, err = ctrl.Send(teams)
	return err
}
