// Package config loads layered configuration for the related CLI and server.
//
// Precedence, lowest to highest:
//  1. Built-in defaults
//  2. YAML config file (--config or RELATED_CONFIG)
//  3. Environment variables with the RELATED_ prefix
//  4. Command-line flags that were explicitly set
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/chriscorrea/related/internal/corpus"
	"github.com/chriscorrea/related/internal/recommend"
	"github.com/chriscorrea/related/internal/textproc"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "RELATED_"

// ConfigPathEnvVar names the config file when --config is not given.
const ConfigPathEnvVar = EnvPrefix + "CONFIG"

// Config is the full application configuration.
type Config struct {
	Index   IndexConfig   `koanf:"index"`
	Corpus  CorpusConfig  `koanf:"corpus"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// IndexConfig tunes training.
type IndexConfig struct {
	MaxVectorSize int     `koanf:"max_vector_size" validate:"gt=0"`
	MaxSimilar    int     `koanf:"max_similar" validate:"gt=0"`
	MinScore      float64 `koanf:"min_score" validate:"gte=0,lte=1"`
	Workers       int     `koanf:"workers" validate:"gte=1"`
	Tokenizer     string  `koanf:"tokenizer" validate:"oneof=word prose"`
	CacheSize     int     `koanf:"cache_size" validate:"gte=1"`
}

// CorpusConfig locates the corpus.
type CorpusConfig struct {
	Source string `koanf:"source"`
	Format string `koanf:"format" validate:"oneof=auto json jsonl ndjson yaml yml"`
	SQLite string `koanf:"sqlite"`
	Query  string `koanf:"query"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	PageSize        int           `koanf:"page_size" validate:"gte=1"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration: the top 10 neighbors scoring
// above 0.01 per document.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			MaxVectorSize: recommend.DefaultMaxVectorSize,
			MaxSimilar:    10,
			MinScore:      0.01,
			Workers:       runtime.NumCPU(),
			Tokenizer:     "word",
			CacheSize:     4,
		},
		Corpus: CorpusConfig{
			Source: "-",
			Format: string(corpus.FormatAuto),
			Query:  corpus.DefaultQuery,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			PageSize:        10,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "error",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the config file at path (or
// RELATED_CONFIG when path is empty), the environment and overrides.
// Override keys are koanf paths such as "index.min_score".
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	// layer 1: defaults
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// layer 2: config file (optional)
	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// layer 3: environment
	// RELATED_INDEX_MIN_SCORE -> index.min_score
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// layer 4: flags
	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransformFunc maps RELATED_SECTION_KEY_NAME to section.key_name.
// The config path variable itself is not a setting.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks every field against its constraints and reports all
// violations using config paths.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint (got %v)", path, constraint(fe), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// IndexOptions converts the index section into recommend options.
func (c *Config) IndexOptions() []recommend.Option {
	tokenizer, _ := textproc.TokenizerByName(c.Index.Tokenizer)
	return []recommend.Option{
		recommend.WithMaxVectorSize(c.Index.MaxVectorSize),
		recommend.WithMaxSimilarDocuments(c.Index.MaxSimilar),
		recommend.WithMinScore(c.Index.MinScore),
		recommend.WithWorkers(c.Index.Workers),
		recommend.WithPreprocessor(textproc.New(textproc.WithTokenizer(tokenizer))),
	}
}

// CorpusSource converts the corpus section into a corpus.Source.
func (c *Config) CorpusSource() (corpus.Source, error) {
	format, err := corpus.ParseFormat(c.Corpus.Format)
	if err != nil {
		return corpus.Source{}, err
	}
	return corpus.Source{
		Path:   c.Corpus.Source,
		Format: format,
		SQLite: c.Corpus.SQLite,
		Query:  c.Corpus.Query,
	}, nil
}
