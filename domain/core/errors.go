package core

import (
	"errors"
	"fmt"
)

// Engine errors - centralized error definitions
var (
	// Model construction errors
	ErrInvalidParameter = errors.New("parameter outside valid domain")
	ErrInvalidInput     = errors.New("invalid input data")

	// Calibration errors
	ErrDegenerateTarget = errors.New("calibration target has no signal")

	// Fitting errors
	ErrFitDidNotConverge = errors.New("fit did not converge")
	ErrNotFitted         = errors.New("model has not been fitted")
)

// Error constructors with context
func NewParameterError(field string, value interface{}, reason string) error {
	return fmt.Errorf("%w: %s=%v (%s)", ErrInvalidParameter, field, value, reason)
}

func NewInputError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

func NewDegenerateTargetError(reason string) error {
	return fmt.Errorf("%w: %s", ErrDegenerateTarget, reason)
}

func NewFitError(model string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrFitDidNotConverge, model, cause)
	}
	return fmt.Errorf("%w: %s", ErrFitDidNotConverge, model)
}

// Error checking helpers
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsDegenerateTarget(err error) bool {
	return errors.Is(err, ErrDegenerateTarget)
}

func IsFitFailure(err error) bool {
	return errors.Is(err, ErrFitDidNotConverge) || errors.Is(err, ErrNotFitted)
}
