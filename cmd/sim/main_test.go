package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ardalan-sia/trafficsim/pkg/config"
	"github.com/ardalan-sia/trafficsim/pkg/loader"
	"github.com/ardalan-sia/trafficsim/pkg/simulation"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunGrid(t *testing.T) {
	cfg := config.Default()
	cfg.TickRate = 1000
	cfg.MaxTicks = 50
	for _, kind := range []string{"pretimed", "adaptive"} {
		cfg.Controller.Kind = kind
		if err := run(context.Background(), cfg, "../../data/grid.txt", quiet()); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, cfg, "../../data/grid.txt", quiet()); err != nil {
		t.Fatal(err)
	}
}

func TestRunMissingNetwork(t *testing.T) {
	if err := run(context.Background(), config.Default(), "nope.txt", quiet()); err == nil {
		t.Fatal("missing network accepted")
	}
}

func TestSpawnAccumulator(t *testing.T) {
	l, err := loader.Load("../../data/grid.txt")
	if err != nil {
		t.Fatal(err)
	}
	net, err := l.Build()
	if err != nil {
		t.Fatal(err)
	}
	sim := simulation.NewSimulator(net, nil, simulation.Options{Logger: quiet()})
	d := &driver{sim: sim, lg: quiet(), rate: 0.5}
	for i := 0; i < 10; i++ {
		if err := d.accumulate(1); err != nil {
			t.Fatal(err)
		}
	}
	// 0.5 per second over 10 seconds on an empty grid
	if got := sim.Stats().Spawned; got != 5 {
		t.Fatalf("spawned %d, want 5", got)
	}
}
