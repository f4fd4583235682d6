package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

type Config struct {
	Env          string             `yaml:"env" env-default:"prod"`
	Robot        RobotConfig        `yaml:"robot"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Storage      StorageConfig      `yaml:"storage"`
	Sender       SenderConfig       `yaml:"sender"`
	Buffer       BufferConfig       `yaml:"buffer"`
	Health       HealthConfig       `yaml:"health"`
	Log          LogConfig          `yaml:"log"`
}

type RobotConfig struct {
	ID     string `yaml:"id" env:"ROBOT_ID" env-required:"true"`
	Secret string `yaml:"secret" env:"ROBOT_SECRET"`
}

// ControlPlaneConfig points at the directory the file client reads
// robot.yaml and agent.yaml from.
type ControlPlaneConfig struct {
	ConfigDir string `yaml:"config_dir" env:"CONTROL_PLANE_DIR" env-default:"/etc/micro-rdk"`
}

type MonitorConfig struct {
	Period       time.Duration `yaml:"period" env-default:"10s"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env-default:"60s"`
}

type StorageConfig struct {
	Path string `yaml:"path" env-default:"/var/lib/micro-rdk/robot.db"`
}

type SenderConfig struct {
	// Kind is one of http, nats or log.
	Kind      string        `yaml:"kind" env:"SENDER_KIND" env-default:"http"`
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token" env:"SENDER_TOKEN"`
	Timeout   time.Duration `yaml:"timeout" env-default:"30s"`
	RateLimit float64       `yaml:"rate_limit" env-default:"20"`
	Retry     RetryConfig   `yaml:"retry"`
	NATS      NATSConfig    `yaml:"nats"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"1s"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"60s"`
}

type NATSConfig struct {
	URL           string `yaml:"url" env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	SubjectPrefix string `yaml:"subject_prefix" env-default:"telemetry"`
}

type BufferConfig struct {
	Enabled bool          `yaml:"enabled" env-default:"true"`
	Path    string        `yaml:"path" env-default:"/var/lib/micro-rdk/buffer.db"`
	MaxAge  time.Duration `yaml:"max_age" env-default:"24h"`
}

type HealthConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

const (
	SenderHTTP = "http"
	SenderNATS = "nats"
	SenderLog  = "log"
)

// Load reads the config file at path, with environment overrides.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, errors.Wrapf(err, "config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Sender.Kind {
	case SenderHTTP:
		if c.Sender.URL == "" {
			return errors.New("sender.url is required for the http sender")
		}
	case SenderNATS, SenderLog:
	default:
		return errors.Errorf("unknown sender kind %q", c.Sender.Kind)
	}
	if c.Monitor.Period <= 0 || c.Monitor.FetchTimeout <= 0 {
		return errors.New("monitor period and fetch_timeout must be positive")
	}
	return nil
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}
