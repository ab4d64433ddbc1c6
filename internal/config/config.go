// Package config loads casetrail configuration.
//
// Configuration comes from three layers, later layers winning: built-in
// defaults, an optional YAML file, and CASETRAIL_* environment variables.
// The result is checked against an embedded CUE schema and then against the
// label taxonomy rules of package revert.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/casetrail/internal/notes"
	"github.com/roach88/casetrail/internal/revert"
)

//go:embed schema.cue
var schemaCUE string

// Version is the configuration file format version.
const Version = 1

// DefaultDatabase is the database path used when none is configured.
const DefaultDatabase = "casetrail.db"

// Config is the full casetrail configuration.
type Config struct {
	Version       int                `yaml:"version" json:"version"`
	Database      string             `yaml:"database" json:"database" env:"CASETRAIL_DB"`
	LogLevel      string             `yaml:"log_level" json:"log_level" env:"CASETRAIL_LOG_LEVEL"`
	SurfaceAborts bool               `yaml:"surface_aborts" json:"surface_aborts" env:"CASETRAIL_SURFACE_ABORTS"`
	Labels        revert.LabelConfig `yaml:"labels" json:"labels"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version:       Version,
		Database:      DefaultDatabase,
		LogLevel:      "info",
		SurfaceAborts: true,
		Labels:        revert.DefaultLabels(),
	}
}

// ValidationError reports a configuration value rejected by the schema or
// by the taxonomy rules.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates the result.
// The environment is not consulted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ParseEnv applies CASETRAIL_* environment overrides to cfg.
func ParseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks cfg against the schema and the taxonomy rules. The label
// taxonomy must classify every label package notes produces.
func (c Config) Validate() error {
	if err := c.checkSchema(); err != nil {
		return err
	}
	if err := c.Labels.Validate(); err != nil {
		return &ValidationError{Field: "labels", Message: err.Error(), Err: err}
	}
	if err := c.Labels.Covers(notes.Labels()); err != nil {
		return &ValidationError{Field: "labels", Message: err.Error(), Err: err}
	}
	return nil
}

// checkSchema unifies the encoded config with #Config from schema.cue.
func (c Config) checkSchema() error {
	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v := cctx.Encode(c.normalized())
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// normalized replaces nil label sets with empty ones so they encode as
// lists rather than null.
func (c Config) normalized() Config {
	sets := []*[]string{
		&c.Labels.Anchor,
		&c.Labels.Additions,
		&c.Labels.Removals,
		&c.Labels.Mixed,
		&c.Labels.Neutral,
	}
	for _, s := range sets {
		if *s == nil {
			*s = []string{}
		}
	}
	return c
}

func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error(), Err: err}
	}
	first := errs[0]
	path := first.Path()
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	format, args := first.Msg()
	return &ValidationError{
		Field:   strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Encode writes cfg as YAML.
func (c Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.normalized()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
