package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// Config is the whole process configuration, read from the environment.
type Config struct {
	Token   string `koanf:"token"`
	OwnerID string `koanf:"owner_id"`
	Port    string `koanf:"port"`

	DB         DB         `koanf:"db"`
	Log        Log        `koanf:"log"`
	Archive    Archive    `koanf:"archive"`
	Attachment Attachment `koanf:"attachment"`
	Spaces     Spaces     `koanf:"spaces"`
}

type DB struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	Name         string `koanf:"name"`
	Charset      string `koanf:"charset"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level"`
}

type Archive struct {
	Cron string `koanf:"cron"`
}

// Attachment tunes how attachment bytes are downloaded during archival.
type Attachment struct {
	Rate        float64       `koanf:"rate"`
	Concurrency int           `koanf:"concurrency"`
	Retries     int           `koanf:"retries"`
	Timeout     time.Duration `koanf:"timeout"`
}

// Spaces configures the optional S3 compatible attachment mirror. Bucket empty means disabled.
type Spaces struct {
	Endpoint string `koanf:"endpoint"`
	Region   string `koanf:"region"`
	Bucket   string `koanf:"bucket"`
	Key      string `koanf:"key"`
	Secret   string `koanf:"secret"`
}

var defaults = map[string]any{
	"port":                   "8080",
	"db.host":                "localhost",
	"db.port":                3306,
	"db.charset":             "utf8mb4",
	"db.max_open_conns":      10,
	"log.dir":                "logs",
	"log.level":              "info",
	"archive.cron":           "@daily",
	"attachment.rate":        5.0,
	"attachment.concurrency": 4,
	"attachment.retries":     3,
	"attachment.timeout":     "60s",
	"spaces.region":          "fra1",
}

// two-segment keys whose first segment is a section; everything else maps to a top level key
var sections = []string{"db", "log", "archive", "attachment", "spaces"}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	return load(env.Provider("", ".", envKey))
}

func load(provider koanf.Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &config, nil
}

// envKey maps DB_MAX_OPEN_CONNS to db.max_open_conns and OWNER_ID to owner_id.
func envKey(s string) string {
	s = strings.ToLower(s)
	for _, section := range sections {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + strings.TrimPrefix(s, section+"_")
		}
	}
	return s
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("TOKEN is required")
	}
	if c.DB.User == "" {
		return errors.New("DB_USER is required")
	}
	if c.DB.Name == "" {
		return errors.New("DB_NAME is required")
	}
	if c.Attachment.Rate <= 0 {
		return fmt.Errorf("ATTACHMENT_RATE must be positive, got %g", c.Attachment.Rate)
	}
	if c.Attachment.Concurrency < 1 {
		return fmt.Errorf("ATTACHMENT_CONCURRENCY must be positive, got %d", c.Attachment.Concurrency)
	}
	return nil
}
