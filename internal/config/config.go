package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
)

const FileName = "survey.yml"

// Config models survey.yml.
type Config struct {
	Program struct {
		ID string `yaml:"id" json:"id,omitempty"`
	} `yaml:"program" json:"program"`
	Rent struct {
		LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year" json:"lamports_per_byte_year"`
		ExemptionThreshold  float64 `yaml:"exemption_threshold" json:"exemption_threshold"`
	} `yaml:"rent" json:"rent"`
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"server" json:"server"`
	Logging  LoggingConfig   `yaml:"logging" json:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Console   bool   `yaml:"console" json:"console"`
	File      string `yaml:"file" json:"file,omitempty"`
	ErrorFile string `yaml:"error_file" json:"error_file,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret" json:"-"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// accountStorageOverhead is the per-account byte allowance added to the data length when
// computing the minimum balance.
const accountStorageOverhead = 128

// ProgramID returns the configured program id, or the built-in default.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	if c == nil || strings.TrimSpace(c.Program.ID) == "" {
		return keys.DefaultProgramID, nil
	}
	id, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Program.ID))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("config.program.id: %w", err)
	}
	return id, nil
}

// MinimumBalance returns the lamports an account holding dataLen bytes must carry.
func (c *Config) MinimumBalance(dataLen int) uint64 {
	if c == nil {
		return 0
	}
	perYear := float64(accountStorageOverhead+dataLen) * float64(c.Rent.LamportsPerByteYear)
	v := perYear * c.Rent.ExemptionThreshold
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if c.Rent.ExemptionThreshold < 0 {
		return fmt.Errorf("config.rent.exemption_threshold must not be negative")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) URL", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with surveyctl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Omitted sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `program:
  # base58 program id; empty uses the built-in id
  id: ""

rent:
  lamports_per_byte_year: 3480
  exemption_threshold: 2.0

server:
  addr: 127.0.0.1:8080
  base_path: /v0

logging:
  level: info
  console: true
  file: ""
  error_file: ""

webhooks: []
`
