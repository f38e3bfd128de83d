package types

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input. Nothing has been written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthenticityError reports a confirmation payload that does not carry a valid gateway signature.
type AuthenticityError struct {
	Reason string
}

func (e *AuthenticityError) Error() string {
	return fmt.Sprintf("payment confirmation rejected: %s", e.Reason)
}

// GatewayError wraps transport and auth failures from the payment gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %s", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// RenderError reports a ticket document that could not be produced or stored.
type RenderError struct {
	BookingID string
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("ticket render for booking %s failed: %s", e.BookingID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// DeliveryError carries the recipient and the stored document key so a resend
// does not need to render again.
type DeliveryError struct {
	Recipient     string
	AttachmentKey string
	Err           error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %s", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsAuthenticity(err error) bool {
	var target *AuthenticityError
	return errors.As(err, &target)
}

func IsGateway(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// ErrorKind names the error class for API responses.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		ae *AuthenticityError
		ge *GatewayError
		re *RenderError
		de *DeliveryError
		ne *NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return "ValidationError"
	case errors.As(err, &ae):
		return "AuthenticityError"
	case errors.As(err, &ge):
		return "GatewayError"
	case errors.As(err, &re):
		return "RenderError"
	case errors.As(err, &de):
		return "DeliveryError"
	case errors.As(err, &ne):
		return "NotFoundError"
	default:
		return "InternalError"
	}
}
