package main

import (
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Arena     ArenaConfig     `yaml:"arena"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	ClientDir     string `yaml:"client_dir"`
	PublicURL     string `yaml:"public_url"`
	MaxConnsPerIP int    `yaml:"max_conns_per_ip"`
	MaxTotalConns int    `yaml:"max_total_conns"`
}

// DatabaseConfig holds the sqlite path, empty disables persistence
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds account settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// StageDurations is the stage -> duration table. Waiting has no timer.
type StageDurations struct {
	FighterSelection  time.Duration `yaml:"fighter_selection"`
	PreMatchCeremony  time.Duration `yaml:"pre_match_ceremony"`
	MatchInProgress   time.Duration `yaml:"match_in_progress"`
	VictoryCeremony   time.Duration `yaml:"victory_ceremony"`
	PostMatchCooldown time.Duration `yaml:"post_match_cooldown"`
}

// ArenaConfig holds match rules and ring geometry
type ArenaConfig struct {
	RingRadius        float64         `yaml:"ring_radius"`
	MinPlayersToStart int             `yaml:"min_players_to_start"`
	BaseSpeed         float64         `yaml:"base_speed"`
	ContactThreshold  float64         `yaml:"contact_threshold"`
	PushForward       float64         `yaml:"push_forward"`
	PushOther         float64         `yaml:"push_other"`
	MaxMoveDelta      float64         `yaml:"max_move_delta"`
	Stages            StageDurations  `yaml:"stages"`
	BannerOffsets     []time.Duration `yaml:"banner_offsets"`
	BannerDuration    time.Duration   `yaml:"banner_duration"`
	Sponsors          []string        `yaml:"sponsors"`
}

// AutopilotConfig holds bot cadences and the intent distribution
type AutopilotConfig struct {
	DecisionInterval time.Duration `yaml:"decision_interval"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	ForwardWeight    float64       `yaml:"forward_weight"`
	LeftWeight       float64       `yaml:"left_weight"`
	RightWeight      float64       `yaml:"right_weight"`
	BackwardWeight   float64       `yaml:"backward_weight"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8080",
			MaxConnsPerIP: 5,
			MaxTotalConns: 1000,
		},
		Database: DatabaseConfig{Path: "ringside.db"},
		Auth:     AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Log:      LogConfig{Level: "info"},
		Arena: ArenaConfig{
			RingRadius:        7,
			MinPlayersToStart: 3,
			BaseSpeed:         4.5,
			ContactThreshold:  1.5,
			PushForward:       0.25,
			PushOther:         0.15,
			MaxMoveDelta:      0.1,
			Stages: StageDurations{
				FighterSelection:  5 * time.Second,
				PreMatchCeremony:  10 * time.Second,
				MatchInProgress:   60 * time.Second,
				VictoryCeremony:   6 * time.Second,
				PostMatchCooldown: 3 * time.Second,
			},
			BannerOffsets:  []time.Duration{2 * time.Second, 6 * time.Second},
			BannerDuration: 3 * time.Second,
			Sponsors:       []string{"Ringside Energy", "Knockout Noodles", "Corner Gym"},
		},
		Autopilot: AutopilotConfig{
			DecisionInterval: 200 * time.Millisecond,
			TickInterval:     30 * time.Millisecond,
			ForwardWeight:    0.70,
			LeftWeight:       0.15,
			RightWeight:      0.15,
			BackwardWeight:   0,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an
// error: the defaults plus environment overrides are used instead.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, eris.Wrapf(err, "failed to unmarshal config %s", filename)
			}
		case !os.IsNotExist(err):
			return nil, eris.Wrapf(err, "failed to read config %s", filename)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARENA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := os.LookupEnv("ARENA_DB_PATH"); ok {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ARENA_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ARENA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ARENA_PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("ARENA_RING_RADIUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Arena.RingRadius = f
		}
	}
}

// Validate rejects configurations the arena cannot run with
func (c *Config) Validate() error {
	a := c.Arena
	if a.RingRadius <= 0 {
		return eris.Errorf("arena.ring_radius must be positive, got %v", a.RingRadius)
	}
	if a.MinPlayersToStart < 1 {
		return eris.Errorf("arena.min_players_to_start must be at least 1, got %d", a.MinPlayersToStart)
	}
	if a.BaseSpeed <= 0 || a.ContactThreshold <= 0 {
		return eris.New("arena.base_speed and arena.contact_threshold must be positive")
	}
	if a.Stages.FighterSelection <= 0 || a.Stages.PreMatchCeremony <= 0 ||
		a.Stages.MatchInProgress <= 0 || a.Stages.VictoryCeremony <= 0 {
		return eris.New("arena.stages durations must be positive")
	}
	p := c.Autopilot
	if p.DecisionInterval <= 0 || p.TickInterval <= 0 {
		return eris.New("autopilot intervals must be positive")
	}
	if p.ForwardWeight+p.LeftWeight+p.RightWeight+p.BackwardWeight <= 0 {
		return eris.New("autopilot weights must sum to a positive value")
	}
	return nil
}
