package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"media_scrooper/logging"
	"media_scrooper/scheduler"
	"media_scrooper/scraper"
)

var runOnce bool

func init() {
	daemonCmd.Flags().BoolVar(&runOnce, "once", false, "Run every configured target once and exit")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon [--once]",
	Short: "Runs configured targets on a schedule and serves /metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{persist: true})
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		sched := scheduler.New(a.cfg.Scheduler, a.runner, a.sqlite, log)

		if runOnce {
			log.Info("running all targets once", logging.Int("targets", len(a.runner.Targets())))
			return sched.TriggerNow(ctx)
		}

		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics listening", logging.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", logging.Error(err))
			}
		}()

		if err := sched.Start(ctx); err != nil {
			return err
		}
		log.Info("daemon running")

		<-ctx.Done()

		log.Info("shutting down")
		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func metricsMux(a *app) *http.ServeMux {
	var queue queueDepth
	if a.pg != nil {
		queue = a.pg
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/status", statusHandler(a.runner, queue))
	return mux
}

type queueDepth interface {
	QueueDepth(ctx context.Context) (map[string]int, error)
}

type daemonStatus struct {
	scraper.Status
	Queue      map[string]int `json:"queue,omitempty"`
	QueueError string         `json:"queue_error,omitempty"`
}

// statusHandler reports runner state plus download queue counts when a
// queue is configured. A queue error is shown, not fatal.
func statusHandler(r *scraper.Runner, queue queueDepth) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st := daemonStatus{Status: r.Status()}
		if queue != nil {
			depth, err := queue.QueueDepth(req.Context())
			if err != nil {
				st.QueueError = err.Error()
			} else {
				st.Queue = depth
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
