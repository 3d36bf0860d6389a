package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gregLibert/emv-mutator/pkg/attack"
	"github.com/gregLibert/emv-mutator/pkg/emv"
	"github.com/gregLibert/emv-mutator/pkg/tlv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Attack       string                   `yaml:"attack"`
	PANSurrogate string                   `yaml:"pan_surrogate"`
	GPO          GPOConfig                `yaml:"gpo"`
	Injection    InjectionConfig          `yaml:"injection"`
	CrossKernel  CrossKernelConfig        `yaml:"cross_kernel"`
	Dialects     map[string]DialectConfig `yaml:"dialects"`
	Log          LogConfig                `yaml:"log"`
}

type GPOConfig struct {
	AFLEntries int `yaml:"afl_entries"`
}

type InjectionConfig struct {
	OffsetMS          int `yaml:"offset_ms"`
	WindowMS          int `yaml:"window_ms"`
	DeliveryLatencyMS int `yaml:"delivery_latency_ms"`
}

type CrossKernelConfig struct {
	Dialect      string `yaml:"dialect"`
	TriggerRound int    `yaml:"trigger_round"`
	Track2       string `yaml:"track2"`
}

// DialectConfig overrides the AIP / AFL of a dialect, as hex strings.
type DialectConfig struct {
	AIP string `yaml:"aip"`
	AFL string `yaml:"afl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Attack:       string(attack.TypeAuthDowngrade),
		PANSurrogate: "4111111111111111",
		GPO:          GPOConfig{AFLEntries: emv.DefaultAFLEntries},
		Injection: InjectionConfig{
			OffsetMS: int(attack.DefaultInjectionOffset / time.Millisecond),
			WindowMS: int(attack.DefaultInjectionWindow / time.Millisecond),
		},
		CrossKernel: CrossKernelConfig{
			Dialect:      string(emv.DialectMastercard),
			TriggerRound: attack.DefaultTriggerRound,
			Track2:       fmt.Sprintf("%X", emv.DefaultTrack2),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(content)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(content []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := attack.ParseType(c.Attack); err != nil {
		return fmt.Errorf("config.attack must be one of auth_downgrade, state_confusion, cross_kernel: %w", err)
	}
	if strings.TrimSpace(c.PANSurrogate) == "" {
		return fmt.Errorf("config.pan_surrogate is required")
	}

	if c.GPO.AFLEntries < 1 {
		return fmt.Errorf("config.gpo.afl_entries must be >= 1")
	}

	if c.Injection.OffsetMS < 0 {
		return fmt.Errorf("config.injection.offset_ms must be >= 0")
	}
	if c.Injection.WindowMS <= c.Injection.OffsetMS {
		return fmt.Errorf("config.injection.window_ms must be greater than offset_ms")
	}
	if c.Injection.DeliveryLatencyMS < 0 {
		return fmt.Errorf("config.injection.delivery_latency_ms must be >= 0")
	}

	if _, err := emv.ParseDialect(c.CrossKernel.Dialect); err != nil {
		return fmt.Errorf("config.cross_kernel.dialect: %w", err)
	}
	if c.CrossKernel.TriggerRound < 1 {
		return fmt.Errorf("config.cross_kernel.trigger_round must be >= 1")
	}
	if _, err := tlv.ParseHex(c.CrossKernel.Track2); err != nil {
		return fmt.Errorf("config.cross_kernel.track2: %w", err)
	}

	if _, err := c.Profiles(); err != nil {
		return err
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

// AttackType returns the selected attack. Only valid after Validate.
func (c *Config) AttackType() attack.Type {
	t, _ := attack.ParseType(c.Attack)
	return t
}

// Track2 returns the configured fallback Track2 payload.
func (c *Config) Track2() []byte {
	b, _ := tlv.ParseHex(c.CrossKernel.Track2)
	return b
}

// Profiles returns the built-in dialect profiles with the overrides applied.
func (c *Config) Profiles() (map[emv.Dialect]emv.DialectProfile, error) {
	profiles := emv.DefaultProfiles()
	for name, o := range c.Dialects {
		field := "config.dialects." + name
		d, err := emv.ParseDialect(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}

		p := profiles[d]
		if o.AIP != "" {
			raw, err := tlv.ParseHex(o.AIP)
			if err != nil {
				return nil, fmt.Errorf("%s.aip: %w", field, err)
			}
			if len(raw) != emv.AIPLen {
				return nil, fmt.Errorf("%s.aip must be %d bytes", field, emv.AIPLen)
			}
			p.AIP, _ = emv.ParseAIP(raw)
		}
		if o.AFL != "" {
			raw, err := tlv.ParseHex(o.AFL)
			if err != nil {
				return nil, fmt.Errorf("%s.afl: %w", field, err)
			}
			afl, err := emv.ParseAFL(raw)
			if err != nil {
				return nil, fmt.Errorf("%s.afl: %w", field, err)
			}
			p.AFL = afl
		}
		profiles[d] = p
	}
	return profiles, nil
}

func (c *Config) InjectionOffset() time.Duration {
	return time.Duration(c.Injection.OffsetMS) * time.Millisecond
}

func (c *Config) InjectionWindow() time.Duration {
	return time.Duration(c.Injection.WindowMS) * time.Millisecond
}

func (c *Config) DeliveryLatency() time.Duration {
	return time.Duration(c.Injection.DeliveryLatencyMS) * time.Millisecond
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config.log.level must be debug, info, warn or error")
	}
	return level, nil
}
