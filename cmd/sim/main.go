package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardalan-sia/trafficsim/pkg/config"
	"github.com/ardalan-sia/trafficsim/pkg/control"
	"github.com/ardalan-sia/trafficsim/pkg/loader"
	"github.com/ardalan-sia/trafficsim/pkg/simulation"
	"github.com/ardalan-sia/trafficsim/pkg/stream"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file")
		networkPath = flag.String("network", "data/grid.txt", "network description file")
		listen      = flag.String("listen", "", "snapshot server address, overrides the config")
		maxTicks    = flag.Int("ticks", -1, "stop after this many ticks, overrides the config")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *listen != "" {
		cfg.Stream.Listen = *listen
	}
	if *maxTicks >= 0 {
		cfg.MaxTicks = *maxTicks
	}
	level, _ := cfg.Level()
	lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *networkPath, lg); err != nil {
		lg.Error("simulation stopped", slog.Any("err", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, networkPath string, lg *slog.Logger) error {
	layout, err := loader.Load(networkPath)
	if err != nil {
		return err
	}
	net, err := layout.Build()
	if err != nil {
		return fmt.Errorf("%s: %w", networkPath, err)
	}
	if comps := net.Components(); len(comps) > 1 {
		lg.Warn("network is not strongly connected, random trips stay inside one component",
			slog.Int("components", len(comps)))
	}

	ctrl := control.NewScheduler(net, policy(cfg.Controller), lg)
	for _, in := range net.Intersections() {
		ctrl.AddEvent(0, in.ID)
	}
	release := simulation.ReleaseAfterReaction
	if !cfg.Vehicles.ReleaseAfter {
		release = simulation.ReleaseWithinReaction
	}
	sim := simulation.NewSimulator(net, ctrl, simulation.Options{
		ReactionTime:    cfg.Vehicles.ReactionTime,
		Release:         release,
		ArrivalFraction: cfg.Vehicles.ArrivalFraction,
		Jitter:          cfg.Vehicles.Jitter,
		MinSpeed:        cfg.Vehicles.MinSpeed,
		Seed:            cfg.Seed,
		Logger:          lg,
	})

	d := &driver{sim: sim, lg: lg, rate: layout.SpawnRate}
	if cfg.SpawnRate != nil {
		d.rate = *cfg.SpawnRate
	}
	if err := d.spawn(layout.Vehicles); err != nil {
		return err
	}

	var hub *stream.Hub
	if cfg.Stream.Listen != "" {
		hub = stream.NewHub(lg)
		go hub.Run(ctx)
		srv := stream.NewServer(hub, lg)
		go func() {
			if err := srv.Run(ctx, cfg.Stream.Listen); err != nil {
				lg.Error("snapshot server", slog.Any("err", err))
			}
		}()
		hub.Publish(sim.Snapshot())
	}

	lg.Info("simulation started",
		slog.String("network", networkPath),
		slog.Int("intersections", net.CountIntersections()),
		slog.Int("roads", net.CountRoads()),
		slog.Int("vehicles", sim.CountVehicles()),
		slog.Float64("spawn_rate", d.rate),
		slog.String("controller", cfg.Controller.Kind))

	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.TickRate))
	defer ticker.Stop()
	for cfg.MaxTicks == 0 || sim.Ticks() < cfg.MaxTicks {
		select {
		case <-ctx.Done():
			d.summary()
			return nil
		case <-ticker.C:
		}
		if err := sim.Tick(cfg.TickLength); err != nil {
			return err
		}
		if err := d.accumulate(cfg.TickLength); err != nil {
			return err
		}
		if hub != nil && sim.Ticks()%cfg.Stream.Every == 0 {
			hub.Publish(sim.Snapshot())
		}
	}
	d.summary()
	return nil
}

func policy(c config.Controller) control.Policy {
	if c.Kind == "adaptive" {
		return control.Adaptive{Left: c.Left, Min: c.Min, Max: c.Max}
	}
	return control.Pretimed{Left: c.Left, Straight: c.Straight}
}

// driver spawns random trips at a steady rate of simulated time.
type driver struct {
	sim     *simulation.Simulator
	lg      *slog.Logger
	rate    float64 // vehicles per simulated second
	pending float64
}

func (d *driver) accumulate(dt float64) error {
	d.pending += dt * d.rate
	n := math.Floor(d.pending)
	d.pending -= n
	return d.spawn(int(n))
}

// spawn tries n random trips. A full or disconnected network only skips
// the trip.
func (d *driver) spawn(n int) error {
	for i := 0; i < n; i++ {
		_, err := d.sim.SpawnRandom()
		switch {
		case err == nil:
		case errors.Is(err, simulation.ErrNoCapacity), errors.Is(err, simulation.ErrNoRoute):
			d.lg.Debug("random trip skipped", slog.Any("err", err))
		default:
			return err
		}
	}
	return nil
}

func (d *driver) summary() {
	st := d.sim.Stats()
	d.lg.Info("simulation finished",
		slog.Float64("time", d.sim.Now()),
		slog.Int("ticks", d.sim.Ticks()),
		slog.Int("spawned", st.Spawned),
		slog.Int("completed", st.Completed),
		slog.Int("transfers", st.Transfers),
		slog.Int("alive", d.sim.CountVehicles()))
}
