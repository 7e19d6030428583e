// Command httpx-server wires the core's leaf-to-root dependency chain
// (slab -> trie -> engine -> dispatcher -> orchestrator) into a runnable
// process: flag/env/file configuration loading and process lifecycle live
// here, outside the core packages themselves.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/behrlich/go-httpx/internal/config"
	"github.com/behrlich/go-httpx/internal/dispatcher"
	"github.com/behrlich/go-httpx/internal/engine"
	"github.com/behrlich/go-httpx/internal/gossip"
	"github.com/behrlich/go-httpx/internal/logging"
	"github.com/behrlich/go-httpx/internal/metrics"
	"github.com/behrlich/go-httpx/internal/orchestrator"
	"github.com/behrlich/go-httpx/internal/registry"
	"github.com/behrlich/go-httpx/internal/ring"
	"github.com/behrlich/go-httpx/internal/slab"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cfg := config.Default()
	var metricsAddr string
	var gossipPeers []string

	cmd := &cobra.Command{
		Use:   "httpx-server",
		Short: "Intent-predictive UDP transport server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindConfig(v, &cfg)
			return run(cfg, v.GetString("metrics-addr"), v.GetStringSlice("gossip-peers"))
		},
	}

	flags := cmd.Flags()
	flags.String("host", cfg.Host, "bind address")
	flags.Uint16("port", cfg.Port, "bind port (shared across workers via SO_REUSEPORT)")
	flags.Int("workers", cfg.WorkerThreads, "number of per-core dispatcher workers")
	flags.Uint32("max-intent-credits", cfg.MaxIntentCredits, "ceiling on total outstanding intents across a worker (recorded in config; not enforced)")
	flags.Int("predictive-depth", cfg.PredictiveDepth, "bit-path depth for speculative decisions (recorded in config; the engine walks full paths)")
	flags.Int("slab-capacity", cfg.SlabCapacity, "number of slots in the Secure Slab")
	flags.Bool("production", cfg.ProductionMode, "production mode flag (recorded in config; slab layout and ring backend do not depend on it)")
	flags.StringSliceVar(&gossipPeers, "gossip-peers", nil, "memberlist peer addresses to join at startup")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "bind address for the Prometheus /metrics endpoint (empty disables it)")

	v.BindPFlags(flags)
	v.SetEnvPrefix("HTTPX")
	v.AutomaticEnv()

	return cmd
}

func bindConfig(v *viper.Viper, cfg *config.Config) {
	cfg.Host = v.GetString("host")
	cfg.Port = uint16(v.GetUint32("port"))
	cfg.WorkerThreads = v.GetInt("workers")
	cfg.MaxIntentCredits = v.GetUint32("max-intent-credits")
	cfg.PredictiveDepth = v.GetInt("predictive-depth")
	cfg.SlabCapacity = v.GetInt("slab-capacity")
	cfg.ProductionMode = v.GetBool("production")
}

func run(cfg config.Config, metricsAddr string, gossipPeers []string) error {
	logger := logging.Default()
	logger.Info("httpx-server: starting", "host", cfg.Host, "port", cfg.Port, "workers", cfg.WorkerThreads)

	sl, err := slab.New(cfg.SlabCapacity)
	if err != nil {
		return fmt.Errorf("httpx-server: slab init failed: %w", err)
	}

	reg := registry.New(cfg.SlabCapacity)
	met := metrics.New()
	orch := orchestrator.New(cfg.SlabCapacity)

	var gossiper *gossip.Broadcaster
	gb, err := gossip.NewBroadcaster(fmt.Sprintf("httpx-%d", os.Getpid()), cfg.Host, 0, reg.TakeTrie())
	if err != nil {
		logger.Warn("httpx-server: gossip broadcaster unavailable, running cluster-isolated", "error", err)
	} else {
		gossiper = gb
		if len(gossipPeers) > 0 {
			if n, err := gossiper.Join(gossipPeers); err != nil {
				logger.Warn("httpx-server: gossip join failed", "error", err)
			} else {
				logger.Info("httpx-server: gossip joined cluster", "members", n)
			}
		}
		orch.WithGossip(gossiper)
	}

	if metricsAddr != "" {
		serveMetrics(metricsAddr, met, logger)
	}

	stop := make(chan struct{})

	for i := 0; i < cfg.WorkerThreads; i++ {
		r, err := ring.New(ring.Config{
			Host:           cfg.Host,
			Port:           int(cfg.Port),
			Entries:        256,
			ProductionMode: cfg.ProductionMode,
		})
		if err != nil {
			return fmt.Errorf("httpx-server: worker %d ring init failed: %w", i, err)
		}

		eng := engine.New(true)
		eng.Install(reg.TakeTrie())

		control := make(chan dispatcher.ControlSignal, 16)
		d := dispatcher.New(i, r, sl, eng, control, orch.LearnChan())
		orch.Attach(control)

		go d.RunLoop(stop)
		logger.Info("httpx-server: worker started", "core", i, "local_addr", localAddrString(r))
	}

	go orch.Run(stop)

	waitForSignal()
	logger.Info("httpx-server: shutting down")
	close(stop)
	if gossiper != nil {
		gossiper.Leave()
	}
	return nil
}

// serveMetrics registers met as a prometheus.Collector and serves it over
// /metrics on a background HTTP listener; a bind failure is logged, not
// fatal, since metrics scraping is ancillary to the hot path.
func serveMetrics(addr string, met *metrics.Metrics, logger *logging.Logger) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewPrometheusCollector(met))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("httpx-server: metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("httpx-server: metrics endpoint listening", "addr", addr)
}

func localAddrString(r ring.Ring) string {
	if a := r.LocalAddr(); a != nil {
		return a.String()
	}
	return ""
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
