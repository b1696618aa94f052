// Package config loads livetake settings. Values are layered: built-in
// defaults, then an optional TOML or YAML file, then a .env file, then
// LIVETAKE_* environment variables. Command-line flags are applied last by
// the CLI.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/processor"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "livetake"

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// EngineConfig locates the ffmpeg binaries and bounds each invocation.
type EngineConfig struct {
	FFmpeg         string `toml:"ffmpeg" yaml:"ffmpeg" envconfig:"FFMPEG"`
	FFprobe        string `toml:"ffprobe" yaml:"ffprobe" envconfig:"FFPROBE"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
	MinOutputBytes int64  `toml:"min_output_bytes" yaml:"min_output_bytes" envconfig:"MIN_OUTPUT_BYTES"`
	Retries        int    `toml:"retries" yaml:"retries" envconfig:"RETRIES"`
}

// OutputConfig is the encoded output format.
type OutputConfig struct {
	Codec      string `toml:"codec" yaml:"codec" envconfig:"CODEC"`
	Bitrate    string `toml:"bitrate" yaml:"bitrate" envconfig:"BITRATE"`
	SampleRate int    `toml:"sample_rate" yaml:"sample_rate" envconfig:"SAMPLE_RATE"`
	Channels   int    `toml:"channels" yaml:"channels" envconfig:"CHANNELS"`
	Extension  string `toml:"extension" yaml:"extension" envconfig:"EXTENSION"`
}

// LoudnessConfig is the final normalisation target.
type LoudnessConfig struct {
	IntegratedLUFS float64 `toml:"integrated_lufs" yaml:"integrated_lufs" envconfig:"INTEGRATED_LUFS"`
	TruePeakDB     float64 `toml:"true_peak_db" yaml:"true_peak_db" envconfig:"TRUE_PEAK_DB"`
	RangeLU        float64 `toml:"range_lu" yaml:"range_lu" envconfig:"RANGE_LU"`
}

// AmbienceConfig covers the asset library and layer placement.
type AmbienceConfig struct {
	Dir                 string  `toml:"dir" yaml:"dir" envconfig:"DIR"`
	LoopShortBackground bool    `toml:"loop_short_background" yaml:"loop_short_background" envconfig:"LOOP_SHORT_BACKGROUND"`
	MinClipSeconds      float64 `toml:"min_clip_seconds" yaml:"min_clip_seconds" envconfig:"MIN_CLIP_SECONDS"`
	// MainsHz is the hum frequency: 0 detects it from the local timezone,
	// -1 disables hum.
	MainsHz int `toml:"mains_hz" yaml:"mains_hz" envconfig:"MAINS_HZ"`
}

// BatchConfig shapes batch runs and where their outputs go.
type BatchConfig struct {
	Workers      int    `toml:"workers" yaml:"workers" envconfig:"WORKERS"`
	OutputRoot   string `toml:"output_root" yaml:"output_root" envconfig:"OUTPUT_ROOT"`
	FolderPrefix string `toml:"folder_prefix" yaml:"folder_prefix" envconfig:"FOLDER_PREFIX"`
	RecordsDir   string `toml:"records_dir" yaml:"records_dir" envconfig:"RECORDS_DIR"`
	// Database is the SQLite catalogue, <records_dir>/livetake.db when empty.
	Database     string `toml:"database" yaml:"database" envconfig:"DATABASE"`
	SkipExisting bool   `toml:"skip_existing" yaml:"skip_existing" envconfig:"SKIP_EXISTING"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" envconfig:"LEVEL"`
	Pretty bool   `toml:"pretty" yaml:"pretty" envconfig:"PRETTY"`
	File   string `toml:"file" yaml:"file" envconfig:"FILE"`
}

// MetricsConfig names the Prometheus textfile, empty for none.
type MetricsConfig struct {
	Textfile string `toml:"textfile" yaml:"textfile" envconfig:"TEXTFILE"`
}

// Config is the complete livetake configuration.
type Config struct {
	Engine   EngineConfig   `toml:"engine" yaml:"engine" envconfig:"ENGINE"`
	Output   OutputConfig   `toml:"output" yaml:"output" envconfig:"OUTPUT"`
	Loudness LoudnessConfig `toml:"loudness" yaml:"loudness" envconfig:"LOUDNESS"`
	Ambience AmbienceConfig `toml:"ambience" yaml:"ambience" envconfig:"AMBIENCE"`
	Batch    BatchConfig    `toml:"batch" yaml:"batch" envconfig:"BATCH"`
	Log      LogConfig      `toml:"log" yaml:"log" envconfig:"LOG"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics" envconfig:"METRICS"`

	// Profiles override or extend the built-in scenario profiles by name.
	Profiles []humanize.ScenarioProfile `toml:"profiles" yaml:"profiles" ignored:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	out := processor.DefaultOutputPolicy()
	loud := processor.DefaultLoudnessTarget()
	return &Config{
		Engine: EngineConfig{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			TimeoutSeconds: int(processor.DefaultRenderTimeout / time.Second),
			MinOutputBytes: processor.DefaultMinOutputBytes,
			Retries:        batch.DefaultRetryPolicy().MaxRetries,
		},
		Output: OutputConfig{
			Codec:      out.Codec,
			Bitrate:    out.Bitrate,
			SampleRate: out.SampleRate,
			Channels:   out.Channels,
			Extension:  out.Extension,
		},
		Loudness: LoudnessConfig{
			IntegratedLUFS: loud.IntegratedLUFS,
			TruePeakDB:     loud.TruePeakDB,
			RangeLU:        loud.RangeLU,
		},
		Ambience: AmbienceConfig{
			Dir:            "ambience",
			MinClipSeconds: humanize.DefaultMinClipSeconds,
		},
		Batch: BatchConfig{
			FolderPrefix: "humanized_",
			RecordsDir:   "records",
		},
		Log: LogConfig{
			Level: "info",
		},
		Profiles: humanize.DefaultProfiles(),
	}
}

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		overrides, err := decodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		cfg.Profiles = MergeProfiles(humanize.DefaultProfiles(), overrides)
	}

	// A missing .env is normal.
	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile decodes path over cfg, rejecting unknown keys. Profiles from the
// file are returned separately so they merge with the built-ins rather than
// replacing them.
func decodeFile(path string, cfg *Config) ([]humanize.ScenarioProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg.Profiles = nil
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return cfg.Profiles, nil
}

// MergeProfiles overlays overrides onto base by case-insensitive name. New
// names are appended in the order given.
func MergeProfiles(base, overrides []humanize.ScenarioProfile) []humanize.ScenarioProfile {
	out := append([]humanize.ScenarioProfile(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if strings.EqualFold(out[i].Name, o.Name) {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks every section and every profile.
func (c *Config) Validate() error {
	var problems []string
	if c.Engine.FFmpeg == "" {
		problems = append(problems, "engine.ffmpeg must be set")
	}
	if c.Engine.FFprobe == "" {
		problems = append(problems, "engine.ffprobe must be set")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		problems = append(problems, "engine.timeout_seconds must be positive")
	}
	if c.Engine.Retries < 0 {
		problems = append(problems, "engine.retries must not be negative")
	}
	if c.Output.SampleRate <= 0 {
		problems = append(problems, "output.sample_rate must be positive")
	}
	if c.Output.Channels < 1 || c.Output.Channels > 2 {
		problems = append(problems, "output.channels must be 1 or 2")
	}
	if c.Output.Extension == "" || !strings.HasPrefix(c.Output.Extension, ".") {
		problems = append(problems, "output.extension must start with a dot")
	}
	if c.Loudness.IntegratedLUFS < -70 || c.Loudness.IntegratedLUFS > -5 {
		problems = append(problems, "loudness.integrated_lufs must be within [-70, -5]")
	}
	if c.Loudness.TruePeakDB < -9 || c.Loudness.TruePeakDB > 0 {
		problems = append(problems, "loudness.true_peak_db must be within [-9, 0]")
	}
	if c.Loudness.RangeLU < 1 || c.Loudness.RangeLU > 50 {
		problems = append(problems, "loudness.range_lu must be within [1, 50]")
	}
	if c.Ambience.MinClipSeconds < 0 {
		problems = append(problems, "ambience.min_clip_seconds must not be negative")
	}
	if c.Ambience.MainsHz != 0 && c.Ambience.MainsHz != -1 && c.Ambience.MainsHz != 50 && c.Ambience.MainsHz != 60 {
		problems = append(problems, "ambience.mains_hz must be 0, -1, 50 or 60")
	}
	if c.Batch.RecordsDir == "" {
		problems = append(problems, "batch.records_dir must be set")
	}
	if c.Batch.Workers < 0 {
		problems = append(problems, "batch.workers must not be negative")
	}
	if len(c.Profiles) == 0 {
		problems = append(problems, "at least one profile is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Timeout is the per-invocation engine timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// OutputPolicy converts the output section.
func (c *Config) OutputPolicy() processor.OutputPolicy {
	return processor.OutputPolicy{
		Codec:      c.Output.Codec,
		Bitrate:    c.Output.Bitrate,
		SampleRate: c.Output.SampleRate,
		Channels:   c.Output.Channels,
		Extension:  c.Output.Extension,
	}
}

// BuildOptions converts the output and loudness sections. Features must be
// filled in by the caller after probing the engine.
func (c *Config) BuildOptions() processor.BuildOptions {
	opts := processor.DefaultBuildOptions()
	opts.SampleRate = c.Output.SampleRate
	opts.Output = c.OutputPolicy()
	opts.Loudness = processor.LoudnessTarget{
		IntegratedLUFS: c.Loudness.IntegratedLUFS,
		TruePeakDB:     c.Loudness.TruePeakDB,
		RangeLU:        c.Loudness.RangeLU,
	}
	return opts
}

// Layout converts the batch output settings.
func (c *Config) Layout() batch.Layout {
	return batch.Layout{
		OutputRoot:   c.Batch.OutputRoot,
		FolderPrefix: c.Batch.FolderPrefix,
		Output:       c.OutputPolicy(),
	}
}

// DatabasePath is the catalogue location.
func (c *Config) DatabasePath() string {
	if c.Batch.Database != "" {
		return c.Batch.Database
	}
	return filepath.Join(c.Batch.RecordsDir, "livetake.db")
}

// FailureLogDir is where per-clip failure logs go.
func (c *Config) FailureLogDir() string {
	return filepath.Join(c.Batch.RecordsDir, "failed")
}

// RetryPolicy is the default backoff with the configured retry count.
func (c *Config) RetryPolicy() batch.RetryPolicy {
	p := batch.DefaultRetryPolicy()
	p.MaxRetries = c.Engine.Retries
	return p
}

// Profile finds a scenario profile by name.
func (c *Config) Profile(name string) (humanize.ScenarioProfile, error) {
	p, ok := humanize.FindProfile(c.Profiles, name)
	if !ok {
		return humanize.ScenarioProfile{}, fmt.Errorf("%w: unknown profile %q (have %s)",
			ErrInvalidConfig, name, strings.Join(humanize.ProfileNames(c.Profiles), ", "))
	}
	return p, nil
}
