package providers

import (
	"fmt"
	"strings"
)

// GraphQLError is one entry of a response's top-level errors list.
type GraphQLError struct {
	Message string `json:"message"`
}

// UserError is a mutation-level validation failure reported inside an
// otherwise successful response.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// TransportError means the call never yielded a usable platform response:
// network failure, timeout, or a non-2xx HTTP status.
type TransportError struct {
	Status int // 0 when no HTTP response arrived at all
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("shopify transport error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("shopify transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the platform answered but rejected the call, either
// through the top-level GraphQL errors list or through mutation user errors.
type ProtocolError struct {
	Op         string
	Errors     []GraphQLError
	UserErrors []UserError
}

func (e *ProtocolError) Error() string {
	parts := make([]string, 0, len(e.Errors)+len(e.UserErrors))
	for _, ge := range e.Errors {
		if msg := strings.TrimSpace(ge.Message); msg != "" {
			parts = append(parts, msg)
		}
	}
	for _, ue := range e.UserErrors {
		parts = append(parts, formatUserError(ue))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed", e.Op)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Op, strings.Join(parts, "; "))
}

// StagingError means the platform refused to sign the staged upload, so no
// bytes were ever sent.
type StagingError struct {
	UserErrors []UserError
}

func (e *StagingError) Error() string {
	parts := make([]string, 0, len(e.UserErrors))
	for _, ue := range e.UserErrors {
		parts = append(parts, formatUserError(ue))
	}
	if len(parts) == 0 {
		return "shopify staged upload rejected"
	}
	return fmt.Sprintf("shopify staged upload rejected: %s", strings.Join(parts, "; "))
}

func formatUserError(ue UserError) string {
	msg := strings.TrimSpace(ue.Message)
	if len(ue.Field) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), msg)
}
