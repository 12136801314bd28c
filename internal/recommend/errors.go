package recommend

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOption is matched by every *ConfigurationError.
	ErrInvalidOption = errors.New("invalid option")

	// ErrInvalidDocument is matched by every *ValidationError.
	ErrInvalidDocument = errors.New("invalid document")
)

// ConfigurationError reports an option that failed its type or range check.
// The index keeps its previous configuration when this is returned.
type ConfigurationError struct {
	Option string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("option %s = %v: %s", e.Option, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidOption) hold.
func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidOption }

// ValidationError reports training input that cannot be used.
// Index is the position of the offending record, or -1 when the input as a
// whole is malformed. No training happens when this is returned.
type ValidationError struct {
	Index  int
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("invalid documents: %s", e.Reason)
	case e.ID != "":
		return fmt.Sprintf("invalid document %d (id %q): %s", e.Index, e.ID, e.Reason)
	default:
		return fmt.Sprintf("invalid document %d: %s", e.Index, e.Reason)
	}
}

// Is makes errors.Is(err, ErrInvalidDocument) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDocument }
