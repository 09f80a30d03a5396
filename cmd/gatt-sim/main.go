package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/user/gatt-dispatch/config"
	"github.com/user/gatt-dispatch/logger"
	"github.com/user/gatt-dispatch/observability"
	"github.com/user/gatt-dispatch/util"
	"github.com/user/gatt-dispatch/wire"
	"github.com/user/gatt-dispatch/wire/gatt"
	"github.com/user/gatt-dispatch/wire/notify"
)

type options struct {
	configPath  string
	events      int
	logLevel    string
	metricsAddr string
	seed        int64
	loss        float64
	bonded      bool
	period      time.Duration
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "", "config file (.yaml or .toml), default $"+config.ConfigEnv)
	pflag.IntVarP(&opts.events, "events", "n", 2000, "connection events to run (0 runs until interrupted)")
	pflag.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn or error")
	pflag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
	pflag.Int64Var(&opts.seed, "seed", 0, "seed for a deterministic run")
	pflag.Float64Var(&opts.loss, "loss", 0, "packet loss rate per frame and direction")
	pflag.BoolVar(&opts.bonded, "bonded", false, "treat the simulated central as bonded")
	pflag.DurationVar(&opts.period, "period", 200*time.Microsecond, "pause between application updates")
	pflag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "gatt-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if path := config.Path(opts.configPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if pflag.CommandLine.Changed("seed") {
		cfg.Simulation.Seed = opts.seed
		cfg.Simulation.Deterministic = true
	}
	if pflag.CommandLine.Changed("loss") {
		cfg.Simulation.PacketLossRate = opts.loss
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.SetLevel(cfg.Level())
	if cfg.DataDir != "" {
		if err := os.Setenv(util.DataDirEnv, cfg.DataDir); err != nil {
			return fmt.Errorf("set data directory: %w", err)
		}
	}

	observability.RegisterMetrics()
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(opts.metricsAddr, mux); err != nil {
				logger.Error("metrics", "❌ %v", err)
			}
		}()
		logger.Info("metrics", "📈 serving on %s/metrics", opts.metricsAddr)
	}

	services, err := cfg.GATTServices()
	if err != nil {
		return err
	}
	table, err := gatt.BuildAttributeDatabase(services)
	if err != nil {
		return err
	}
	link, err := cfg.LinkConfig()
	if err != nil {
		return err
	}

	server, err := wire.NewServer(table, link, wire.WithBondStore(gatt.NewBondStore("")))
	if err != nil {
		return err
	}
	defer server.Close()

	simCfg := cfg.SimulationConfig()
	peerID := uuid.New().String()
	if simCfg.Deterministic {
		peerID = fmt.Sprintf("sim-%d", simCfg.Seed)
	}

	central := wire.NewSimCentral(peerID, simCfg.DefaultMTU)
	for i := 0; i < table.Slots.Len(); i++ {
		slot := table.Slots.Slot(i)
		central.Subscribe(slot, slot.CanNotify(), slot.CanIndicate())
	}

	radio := wire.NewSimRadio(central, wire.NewSimulator(simCfg))
	conn, err := server.Connect(peerID, opts.bonded, radio)
	if err != nil {
		return err
	}
	radio.Attach(conn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	producerCtx, stopProducer := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		produce(producerCtx, server, table.Slots, simCfg.Seed, opts.period)
	}()

	started := time.Now()
	ran := radio.Run(ctx, opts.events)
	stopProducer()
	wg.Wait()

	report(conn, central, radio, table.Slots, ran, time.Since(started))
	return nil
}

// produce updates a random characteristic every period until ctx is done
func produce(ctx context.Context, server *wire.Server, slots *gatt.SlotTable, seed int64, period time.Duration) {
	if slots.Len() == 0 {
		return
	}

	rng := rand.New(rand.NewSource(seed))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var counter uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		slot := slots.Slot(rng.Intn(slots.Len()))
		counter++
		value := make([]byte, 4)
		binary.LittleEndian.PutUint32(value, counter)
		if _, err := server.Update(slot.UUID, value); err != nil {
			logger.Warn("producer", "⚠️  %v", err)
		}
	}
}

func report(conn *wire.Connection, central *wire.SimCentral, radio *wire.SimRadio, slots *gatt.SlotTable, ran int, elapsed time.Duration) {
	stats := radio.Stats()

	fmt.Printf("\n=== gatt-sim: %d connection events in %v (simulated %v) ===\n", ran, elapsed.Round(time.Millisecond), radio.Now().Round(time.Millisecond))
	fmt.Printf("  Peer:        %s\n", conn.PeerID())
	fmt.Printf("  State:       %s %s\n", conn.State(), conn.Reason())
	fmt.Printf("  MTU:         %d\n", conn.MTU())
	fmt.Printf("  Lost frames: %d downlink, %d uplink\n", stats.DownlinkLost, stats.UplinkLost)
	fmt.Println()
	fmt.Printf("  %-4s %-4s %-20s %14s %12s\n", "SLOT", "TIER", "CHARACTERISTIC", "NOTIFICATIONS", "INDICATIONS")

	queue := conn.Queue()
	for i := 0; i < slots.Len(); i++ {
		slot := slots.Slot(i)
		fmt.Printf("  %-4d %-4d %-20s %14d %12d\n", i, queue.TierOf(i), slot.Label(),
			central.Count(notify.Notification, slot.ValueHandle),
			central.Count(notify.Indication, slot.ValueHandle))
	}
}
