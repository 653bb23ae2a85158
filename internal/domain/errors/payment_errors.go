package errors

import (
	stderrors "errors"
	"fmt"

	apperrors "github.com/Traderpoint/CloudVPS-2-sub003/pkg/errors"
)

// Kind classifies payment workflow failures
type Kind string

// Payment error kinds
const (
	KindGatewayInitFailed  Kind = "GATEWAY_INIT_FAILED"
	KindGatewayLoadFailure Kind = "GATEWAY_LOAD_FAILURE"
	KindBackendUnavailable Kind = "BACKEND_UNAVAILABLE"
	KindBackendRejected    Kind = "BACKEND_REJECTED"
	KindMalformedCallback  Kind = "MALFORMED_CALLBACK"
	KindInvalidSignature   Kind = "INVALID_SIGNATURE"
	KindProvisioningFailed Kind = "PROVISIONING_FAILED"
	KindInvalidRequest     Kind = "INVALID_REQUEST"
)

// PaymentError represents errors raised while collecting a payment or talking to the billing backend
type PaymentError struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (op: %s) - %v", e.Kind, e.Message, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s (op: %s)", e.Kind, e.Message, e.Op)
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Is matches any PaymentError of the same kind, so the sentinels below work with errors.Is.
func (e *PaymentError) Is(target error) bool {
	t, ok := target.(*PaymentError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Code maps the kind onto the shared error codes used for HTTP/gRPC translation.
func (e *PaymentError) Code() string {
	switch e.Kind {
	case KindBackendUnavailable:
		return apperrors.ErrUnavailable
	case KindBackendRejected, KindGatewayLoadFailure, KindGatewayInitFailed, KindProvisioningFailed:
		return apperrors.ErrBadGateway
	case KindMalformedCallback, KindInvalidRequest:
		return apperrors.ErrInvalidArgument
	case KindInvalidSignature:
		return apperrors.ErrUnauthenticated
	default:
		return apperrors.ErrInternal
	}
}

// Sentinels for errors.Is
var (
	ErrGatewayInitFailed  = &PaymentError{Kind: KindGatewayInitFailed}
	ErrGatewayLoadFailure = &PaymentError{Kind: KindGatewayLoadFailure}
	ErrBackendUnavailable = &PaymentError{Kind: KindBackendUnavailable}
	ErrBackendRejected    = &PaymentError{Kind: KindBackendRejected}
	ErrMalformedCallback  = &PaymentError{Kind: KindMalformedCallback}
	ErrInvalidSignature   = &PaymentError{Kind: KindInvalidSignature}
	ErrProvisioningFailed = &PaymentError{Kind: KindProvisioningFailed}
	ErrInvalidRequest     = &PaymentError{Kind: KindInvalidRequest}
)

// KindOf returns the kind of the first PaymentError in the chain, or "".
func KindOf(err error) Kind {
	var pe *PaymentError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsGatewayLoadFailure reports whether the backend could not instantiate its own gateway module.
// Only this failure class permits the direct bypass.
func IsGatewayLoadFailure(err error) bool {
	return stderrors.Is(err, ErrGatewayLoadFailure)
}

// IsRetryable reports whether a retry may succeed. Only transport failures qualify.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrBackendUnavailable)
}

// NewBackendUnavailableError creates a transport/timeout failure
func NewBackendUnavailableError(op string, cause error) *PaymentError {
	return &PaymentError{
		Kind:    KindBackendUnavailable,
		Op:      op,
		Message: "billing backend unavailable",
		Cause:   cause,
	}
}

// NewBackendRejectedError creates a structured backend rejection carrying the backend text
func NewBackendRejectedError(op, backendMessage string) *PaymentError {
	return &PaymentError{
		Kind:    KindBackendRejected,
		Op:      op,
		Message: backendMessage,
	}
}

// NewGatewayLoadFailureError creates a rejection caused by the backend's own gateway module
func NewGatewayLoadFailureError(op, backendMessage string) *PaymentError {
	return &PaymentError{
		Kind:    KindGatewayLoadFailure,
		Op:      op,
		Message: backendMessage,
	}
}

// NewGatewayInitFailedError creates a provider session failure
func NewGatewayInitFailedError(providerName, message string, cause error) *PaymentError {
	return &PaymentError{
		Kind:    KindGatewayInitFailed,
		Op:      providerName + ".initialize",
		Message: message,
		Cause:   cause,
	}
}

// NewMalformedCallbackError creates a callback validation failure
func NewMalformedCallbackError(providerName, message string) *PaymentError {
	return &PaymentError{
		Kind:    KindMalformedCallback,
		Op:      providerName + ".callback",
		Message: message,
	}
}

// NewInvalidSignatureError creates a callback signature mismatch
func NewInvalidSignatureError(providerName string, cause error) *PaymentError {
	return &PaymentError{
		Kind:    KindInvalidSignature,
		Op:      providerName + ".callback",
		Message: "callback signature verification failed",
		Cause:   cause,
	}
}

// NewProvisioningFailedError creates a non-fatal provisioning failure
func NewProvisioningFailedError(orderID string, cause error) *PaymentError {
	return &PaymentError{
		Kind:    KindProvisioningFailed,
		Op:      "provision",
		Message: "provisioning hooks failed for order " + orderID,
		Cause:   cause,
	}
}

// NewInvalidRequestError creates a request validation failure
func NewInvalidRequestError(op, message string) *PaymentError {
	return &PaymentError{
		Kind:    KindInvalidRequest,
		Op:      op,
		Message: message,
	}
}
