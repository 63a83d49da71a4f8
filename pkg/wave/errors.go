package wave

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrInvalidParameter = errors.New("wave: invalid parameter")
	ErrInvalidType      = errors.New("wave: invalid parameter type")
	ErrTransport        = errors.New("wave: transport failure")
	ErrService          = errors.New("wave: service reported failure")
	ErrDecode           = errors.New("wave: malformed response")
)

// defaultServiceMessage is used when a failed response carries no error text.
const defaultServiceMessage = "Request was not successful"

// InvalidParameterError reports an unknown parameter name (Unknown) or an
// out-of-range value for a known one.
type InvalidParameterError struct {
	Name    string
	Value   any
	Unknown bool
}

func (e *InvalidParameterError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("wave: %s is not a valid parameter", e.Name)
	}
	label := e.Name
	if Param(e.Name) == ParamReportType {
		label = "report type"
	}
	return fmt.Sprintf("wave: %v is not a valid %s", e.Value, label)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// InvalidTypeError reports a parameter value of the wrong dynamic type.
type InvalidTypeError struct {
	Name     string
	Expected string
	Value    any
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("wave: parameter %s must be %s, got %T", e.Name, e.Expected, e.Value)
}

func (e *InvalidTypeError) Is(target error) bool { return target == ErrInvalidType }

// TransportError wraps a failed HTTP exchange. StatusCode is zero when no
// response was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wave: service returned status %d body: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("wave: request failed: %v", e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is returned when the service answers with success=false.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return "wave: " + e.Message
}

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// DecodeError reports a body that could not be parsed in the requested format.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wave: decode %s response: %v", e.Format, e.Err)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }
