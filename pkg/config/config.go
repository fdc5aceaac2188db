package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Controller selects and times the signal controller.
type Controller struct {
	Kind     string  `yaml:"kind"`     // pretimed or adaptive
	Left     float64 `yaml:"left"`     // left sub-phase duration
	Straight float64 `yaml:"straight"` // pretimed primary phase duration
	Min      float64 `yaml:"min"`      // adaptive lower bound
	Max      float64 `yaml:"max"`      // adaptive upper bound
}

// Vehicles tunes vehicle motion and queueing.
type Vehicles struct {
	Jitter          float64 `yaml:"jitter"`
	MinSpeed        float64 `yaml:"min_speed"`
	ReactionTime    float64 `yaml:"reaction_time"`
	ReleaseAfter    bool    `yaml:"release_after_reaction"`
	ArrivalFraction float64 `yaml:"arrival_fraction"`
}

// Stream configures the snapshot server. An empty Listen disables it.
type Stream struct {
	Listen string `yaml:"listen"`
	Every  int    `yaml:"every"` // publish one snapshot every N ticks
}

type Config struct {
	TickRate   float64    `yaml:"tick_rate"`            // ticks per wall clock second
	TickLength float64    `yaml:"tick_length"`          // simulated seconds per tick
	SpawnRate  *float64   `yaml:"spawn_rate,omitempty"` // overrides the network file
	MaxTicks   int        `yaml:"max_ticks"`            // 0 runs until interrupted
	Seed       uint64     `yaml:"seed"`
	LogLevel   string     `yaml:"log_level"`
	Controller Controller `yaml:"controller"`
	Vehicles   Vehicles   `yaml:"vehicles"`
	Stream     Stream     `yaml:"stream"`
}

func Default() Config {
	return Config{
		TickRate:   1,
		TickLength: 1,
		Seed:       1,
		LogLevel:   "info",
		Controller: Controller{Kind: "pretimed", Left: 10, Straight: 30, Min: 5, Max: 50},
		Vehicles: Vehicles{
			Jitter:          0.2,
			MinSpeed:        0.5,
			ReactionTime:    1,
			ReleaseAfter:    true,
			ArrivalFraction: 0.51,
		},
		Stream: Stream{Every: 1},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if !(c.TickRate > 0) {
		errs = append(errs, fmt.Errorf("tick_rate %v must be positive", c.TickRate))
	}
	if !(c.TickLength > 0) {
		errs = append(errs, fmt.Errorf("tick_length %v must be positive", c.TickLength))
	}
	if c.SpawnRate != nil && *c.SpawnRate < 0 {
		errs = append(errs, fmt.Errorf("spawn_rate %v must not be negative", *c.SpawnRate))
	}
	if c.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("max_ticks %d must not be negative", c.MaxTicks))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	ctl := c.Controller
	switch ctl.Kind {
	case "pretimed":
		if !(ctl.Left > 0) || !(ctl.Straight > ctl.Left) {
			errs = append(errs, fmt.Errorf("pretimed controller needs 0 < left < straight, got %v/%v", ctl.Left, ctl.Straight))
		}
	case "adaptive":
		if !(ctl.Left > 0) || !(ctl.Min > 0) || ctl.Max < ctl.Min {
			errs = append(errs, fmt.Errorf("adaptive controller needs left > 0 and 0 < min <= max, got %v/%v/%v", ctl.Left, ctl.Min, ctl.Max))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown controller kind %q", ctl.Kind))
	}
	v := c.Vehicles
	if v.Jitter < 0 {
		errs = append(errs, fmt.Errorf("vehicles.jitter %v must not be negative", v.Jitter))
	}
	if !(v.MinSpeed > 0) {
		errs = append(errs, fmt.Errorf("vehicles.min_speed %v must be positive", v.MinSpeed))
	}
	if !(v.ReactionTime > 0) {
		errs = append(errs, fmt.Errorf("vehicles.reaction_time %v must be positive", v.ReactionTime))
	}
	if !(v.ArrivalFraction > 0) {
		errs = append(errs, fmt.Errorf("vehicles.arrival_fraction %v must be positive", v.ArrivalFraction))
	}
	if c.Stream.Every < 1 {
		errs = append(errs, fmt.Errorf("stream.every %d must be at least 1", c.Stream.Every))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Level maps LogLevel onto a slog level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
