// Package config loads the ecosight configuration.
//
// Sources, in increasing precedence:
//
//	built-in defaults
//	YAML file (--config, or ~/.ecosight/config.yaml when present)
//	.env file in the working directory (never overrides the real environment)
//	ECOSIGHT_* environment variables
//
// Example file:
//
//	server:
//	  addr: ":8000"
//	models:
//	  extractor_url: http://localhost:8501/v1/models/yamnet:predict
//	  classifier_weights: s3://models/threat_head.msgpack
//	location:
//	  latitude: -1.2921
//	  longitude: 36.8219
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/ecosight/ecosight/pkg/audio/normalize"
	"github.com/ecosight/ecosight/pkg/embedding"
	"github.com/ecosight/ecosight/pkg/pipeline"
	"github.com/ecosight/ecosight/pkg/server"
	"github.com/ecosight/ecosight/pkg/storage"
	"github.com/ecosight/ecosight/pkg/threat"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ECOSIGHT_"

// Config is the complete ecosight configuration.
type Config struct {
	Server   ServerConfig      `yaml:"server" json:"server"`
	Audio    AudioConfig       `yaml:"audio" json:"audio"`
	Models   ModelsConfig      `yaml:"models" json:"models"`
	S3       storage.S3Config  `yaml:"s3" json:"s3"`
	Pipeline PipelineConfig    `yaml:"pipeline" json:"pipeline"`
	Location pipeline.Location `yaml:"location" json:"location"`
	Log      LogConfig         `yaml:"log" json:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	MaxUploadMB     int           `yaml:"max_upload_mb" json:"max_upload_mb"`
	MaxBatchItems   int           `yaml:"max_batch_items" json:"max_batch_items"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins" json:"cors_origins"`
	Metrics         bool          `yaml:"metrics" json:"metrics"`
}

// AudioConfig configures the audio normalizer.
type AudioConfig struct {
	SampleRate  int           `yaml:"sample_rate" json:"sample_rate"`
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`
	MinSamples  int           `yaml:"min_samples" json:"min_samples"`
}

// Embedding extractor kinds.
const (
	ExtractorRemote = "remote"
	ExtractorLogMel = "logmel"
)

// ModelsConfig locates the embedding extractor, the classifier and the
// label table.
type ModelsConfig struct {
	// Extractor selects the embedding front end: "remote" calls
	// ExtractorURL, "logmel" computes EmbeddingDim mel bins locally.
	Extractor string `yaml:"extractor" json:"extractor"`

	// ExtractorURL is the predict endpoint of the embedding model.
	ExtractorURL string `yaml:"extractor_url" json:"extractor_url"`

	// ExtractorOutputKey names the embedding tensor in the response.
	ExtractorOutputKey string `yaml:"extractor_output_key" json:"extractor_output_key"`

	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`

	// ClassifierWeights is a weight file path, file:// or s3:// URI. It
	// takes precedence over ClassifierURL.
	ClassifierWeights string `yaml:"classifier_weights" json:"classifier_weights"`

	// ClassifierURL is a remote predict endpoint for the classifier head.
	ClassifierURL string `yaml:"classifier_url" json:"classifier_url"`

	// ClassifierOutputDim is the number of scores the remote classifier
	// emits. When zero it is asked of the endpoint at load time.
	ClassifierOutputDim int `yaml:"classifier_output_dim" json:"classifier_output_dim"`

	// Labels is an optional label table (YAML or JSON) path or URI. The
	// built-in table is used when empty.
	Labels string `yaml:"labels" json:"labels"`

	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	RetryInitial time.Duration `yaml:"retry_initial" json:"retry_initial"`
	RetryMax     time.Duration `yaml:"retry_max" json:"retry_max"`
}

// PipelineConfig configures batch execution.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	srv := server.DefaultConfig()
	norm := normalize.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            srv.Addr,
			MaxUploadMB:     int(srv.MaxUploadBytes >> 20),
			MaxBatchItems:   srv.MaxBatchItems,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			IdleTimeout:     srv.IdleTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
			CORSOrigins:     srv.CORSOrigins,
			Metrics:         true,
		},
		Audio: AudioConfig{
			SampleRate:  norm.SampleRate,
			MaxDuration: norm.MaxDuration,
			MinSamples:  norm.MinSamples,
		},
		Models: ModelsConfig{
			Extractor:          ExtractorRemote,
			ExtractorOutputKey: "embeddings",
			EmbeddingDim:       embedding.DefaultDimension,
			Timeout:            30 * time.Second,
			RetryInitial:       pipeline.DefaultBackoff.Initial,
			RetryMax:           pipeline.DefaultBackoff.Max,
		},
		Pipeline: PipelineConfig{Concurrency: pipeline.DefaultConcurrency},
		Location: pipeline.DefaultLocation,
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty), the .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// envVar binds one environment variable to a config field.
type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *dst(c) = v; return nil }
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func float(dst func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func duration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

var envVars = []envVar{
	{"ADDR", str(func(c *Config) *string { return &c.Server.Addr })},
	{"MAX_UPLOAD_MB", integer(func(c *Config) *int { return &c.Server.MaxUploadMB })},
	{"MAX_BATCH_ITEMS", integer(func(c *Config) *int { return &c.Server.MaxBatchItems })},
	{"CORS_ORIGINS", func(c *Config, v string) error {
		c.Server.CORSOrigins = splitList(v)
		return nil
	}},
	{"METRICS", boolean(func(c *Config) *bool { return &c.Server.Metrics })},
	{"SAMPLE_RATE", integer(func(c *Config) *int { return &c.Audio.SampleRate })},
	{"MAX_DURATION", duration(func(c *Config) *time.Duration { return &c.Audio.MaxDuration })},
	{"MIN_SAMPLES", integer(func(c *Config) *int { return &c.Audio.MinSamples })},
	{"EXTRACTOR", str(func(c *Config) *string { return &c.Models.Extractor })},
	{"EXTRACTOR_URL", str(func(c *Config) *string { return &c.Models.ExtractorURL })},
	{"EXTRACTOR_OUTPUT_KEY", str(func(c *Config) *string { return &c.Models.ExtractorOutputKey })},
	{"EMBEDDING_DIM", integer(func(c *Config) *int { return &c.Models.EmbeddingDim })},
	{"CLASSIFIER_WEIGHTS", str(func(c *Config) *string { return &c.Models.ClassifierWeights })},
	{"CLASSIFIER_URL", str(func(c *Config) *string { return &c.Models.ClassifierURL })},
	{"CLASSIFIER_OUTPUT_DIM", integer(func(c *Config) *int { return &c.Models.ClassifierOutputDim })},
	{"LABELS", str(func(c *Config) *string { return &c.Models.Labels })},
	{"MODEL_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Models.Timeout })},
	{"S3_REGION", str(func(c *Config) *string { return &c.S3.Region })},
	{"S3_ENDPOINT", str(func(c *Config) *string { return &c.S3.Endpoint })},
	{"S3_PATH_STYLE", boolean(func(c *Config) *bool { return &c.S3.UsePathStyle })},
	{"S3_ACCESS_KEY_ID", str(func(c *Config) *string { return &c.S3.AccessKeyID })},
	{"S3_SECRET_ACCESS_KEY", str(func(c *Config) *string { return &c.S3.SecretAccessKey })},
	{"S3_SESSION_TOKEN", str(func(c *Config) *string { return &c.S3.SessionToken })},
	{"CONCURRENCY", integer(func(c *Config) *int { return &c.Pipeline.Concurrency })},
	{"LATITUDE", float(func(c *Config) *float64 { return &c.Location.Latitude })},
	{"LONGITUDE", float(func(c *Config) *float64 { return &c.Location.Longitude })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
}

// ApplyEnv overrides fields from ECOSIGHT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		name := EnvPrefix + ev.name
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(c, v); err != nil {
			return fmt.Errorf("config: %s=%q: %w", name, v, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks everything except model locations, which only the
// commands that run inference need.
func (c *Config) Validate() error {
	if err := c.Normalize().Validate(); err != nil {
		return fmt.Errorf("config: audio: %w", err)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("config: server.max_upload_mb must be positive")
	}
	if c.Server.MaxBatchItems <= 0 {
		return fmt.Errorf("config: server.max_batch_items must be positive")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("config: pipeline.concurrency must be positive")
	}
	if !c.Location.Valid() {
		return fmt.Errorf("config: location %v,%v out of range", c.Location.Latitude, c.Location.Longitude)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q, want text or json", c.Log.Format)
	}
	return nil
}

// Validate checks that an extractor and a classifier are configured.
func (m ModelsConfig) Validate() error {
	switch m.Extractor {
	case ExtractorRemote, "":
		if m.ExtractorURL == "" {
			return threat.ConfigError("extractor", errors.New("models.extractor_url is not set"))
		}
	case ExtractorLogMel:
	default:
		return threat.ConfigError("extractor", fmt.Errorf("unknown models.extractor %q", m.Extractor))
	}
	if m.ClassifierWeights == "" && m.ClassifierURL == "" {
		return threat.ConfigError("classifier", errors.New("set models.classifier_weights or models.classifier_url"))
	}
	if m.EmbeddingDim <= 0 {
		return threat.ConfigError("extractor", fmt.Errorf("models.embedding_dim %d", m.EmbeddingDim))
	}
	if m.ClassifierOutputDim < 0 {
		return threat.ConfigError("classifier", fmt.Errorf("models.classifier_output_dim %d", m.ClassifierOutputDim))
	}
	return nil
}

// Normalize returns the audio normalizer configuration.
func (c *Config) Normalize() normalize.Config {
	return normalize.Config{
		SampleRate:  c.Audio.SampleRate,
		MaxDuration: c.Audio.MaxDuration,
		MinSamples:  c.Audio.MinSamples,
	}
}

// ServerConfig returns the HTTP server configuration.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:            c.Server.Addr,
		MaxUploadBytes:  int64(c.Server.MaxUploadMB) << 20,
		MaxBatchItems:   c.Server.MaxBatchItems,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		CORSOrigins:     c.Server.CORSOrigins,
		ModelPath:       c.Models.ClassifierWeights,
	}
}

// Backoff returns the model loading retry schedule.
func (c *Config) Backoff() pipeline.Backoff {
	return pipeline.Backoff{Initial: c.Models.RetryInitial, Max: c.Models.RetryMax}
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// Redacted returns a copy safe to print: credentials are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	for _, s := range []*string{&out.S3.AccessKeyID, &out.S3.SecretAccessKey, &out.S3.SessionToken} {
		if *s != "" {
			*s = "***"
		}
	}
	return &out
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Write saves the configuration to path, refusing to overwrite an existing
// file unless force is set.
func (c *Config) Write(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return f.Close()
}
