package threat

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindValidation: the input is unusable. Never retried.
	KindValidation Kind = iota + 1
	// KindModelUnavailable: models are not loaded yet.
	KindModelUnavailable
	// KindInference: a model call failed or returned malformed output.
	KindInference
	// KindConfig: label table or model wiring is inconsistent.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindModelUnavailable:
		return "model_unavailable"
	case KindInference:
		return "inference"
	case KindConfig:
		return "config"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels matched with errors.Is against any *Error of the same kind.
var (
	ErrValidation       = errors.New("validation error")
	ErrModelUnavailable = errors.New("model not loaded")
	ErrInference        = errors.New("inference error")
	ErrConfig           = errors.New("configuration error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindModelUnavailable:
		return ErrModelUnavailable
	case KindInference:
		return ErrInference
	case KindConfig:
		return ErrConfig
	}
	return nil
}

// Error is a failure tagged with its kind and the pipeline stage it came
// from.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ValidationError tags err as a validation failure in stage.
func ValidationError(stage string, err error) error {
	return &Error{Kind: KindValidation, Stage: stage, Err: err}
}

// InferenceError tags err as an inference failure in stage.
func InferenceError(stage string, err error) error {
	return &Error{Kind: KindInference, Stage: stage, Err: err}
}

// ConfigError tags err as a configuration failure in stage.
func ConfigError(stage string, err error) error {
	return &Error{Kind: KindConfig, Stage: stage, Err: err}
}

// UnavailableError reports that models are not loaded. cause may be nil.
func UnavailableError(stage string, cause error) error {
	return &Error{Kind: KindModelUnavailable, Stage: stage, Err: cause}
}

// KindOf returns the kind of the first *Error in err's tree. Untagged
// errors are treated as inference failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInference
}

// StageOf returns the stage of the first *Error in err's tree, or "".
func StageOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}
