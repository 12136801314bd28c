package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/chriscorrea/related/internal/textproc"
)

// Default option values.
const (
	DefaultMaxVectorSize       = 100
	DefaultMaxSimilarDocuments = math.MaxInt
	DefaultMinScore            = 0.0
	DefaultWorkers             = 1
)

// Options are the numeric settings of an Index.
type Options struct {
	// MaxVectorSize caps the number of terms kept per document vector.
	MaxVectorSize int `option:"maxVectorSize" validate:"gt=0"`
	// MaxSimilarDocuments caps each stored neighbor list.
	MaxSimilarDocuments int `option:"maxSimilarDocuments" validate:"gt=0"`
	// MinScore drops neighbors scoring at or below it.
	MinScore float64 `option:"minScore" validate:"gte=0,lte=1"`
	// Workers is the number of goroutines scoring pairs during Train.
	Workers int `option:"workers" validate:"gte=1"`
}

// DefaultOptions returns the option values used for omitted settings.
func DefaultOptions() Options {
	return Options{
		MaxVectorSize:       DefaultMaxVectorSize,
		MaxSimilarDocuments: DefaultMaxSimilarDocuments,
		MinScore:            DefaultMinScore,
		Workers:             DefaultWorkers,
	}
}

// settings is everything an Option can change
type settings struct {
	Options
	preprocessor *textproc.Preprocessor
	logger       *slog.Logger
	progress     func(done, total int)
}

// Option configures an Index.
type Option func(*settings)

// WithMaxVectorSize sets the maximum number of terms per document vector.
func WithMaxVectorSize(n int) Option {
	return func(s *settings) { s.MaxVectorSize = n }
}

// WithMaxSimilarDocuments sets the maximum length of each neighbor list.
func WithMaxSimilarDocuments(n int) Option {
	return func(s *settings) { s.MaxSimilarDocuments = n }
}

// WithMinScore sets the exclusive similarity threshold.
func WithMinScore(score float64) Option {
	return func(s *settings) { s.MinScore = score }
}

// WithWorkers sets how many goroutines score document pairs.
// Results do not depend on this value.
func WithWorkers(n int) Option {
	return func(s *settings) { s.Workers = n }
}

// WithPreprocessor replaces the default text preprocessor.
func WithPreprocessor(p *textproc.Preprocessor) Option {
	return func(s *settings) {
		if p != nil {
			s.preprocessor = p
		}
	}
}

// WithLogger sets the logger used for training events.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback invoked as pair scoring advances.
// It may be called concurrently when Workers > 1.
func WithProgress(fn func(done, total int)) Option {
	return func(s *settings) { s.progress = fn }
}

// singleton validator instance; it caches struct metadata
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func optionValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("option"); name != "" {
				return name
			}
			return fld.Name
		})
	})
	return validate
}

// Validate checks every option and returns the first failure as a
// *ConfigurationError.
func (o Options) Validate() error {
	// NaN passes no comparison, but say so explicitly
	if math.IsNaN(o.MinScore) {
		return &ConfigurationError{Option: "minScore", Value: o.MinScore, Reason: "should be a number between 0 and 1"}
	}

	err := optionValidator().Struct(o)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate options: %w", err)
	}

	fe := fieldErrs[0]
	return &ConfigurationError{
		Option: fe.Field(),
		Value:  fe.Value(),
		Reason: reasonFor(fe),
	}
}

// reasonFor turns a validator failure into the message shown to callers
func reasonFor(fe validator.FieldError) string {
	switch fe.Field() {
	case "minScore":
		return "should be a number between 0 and 1"
	default:
		switch fe.Tag() {
		case "gt":
			return "should be an integer greater than " + fe.Param()
		case "gte":
			return "should be an integer of at least " + fe.Param()
		default:
			return fmt.Sprintf("failed %q check", fe.Tag())
		}
	}
}
