package contact

import (
	"fmt"
	"strings"
)

// ValidationError reports required submission fields that were left empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// DeliveryError wraps a failure from the mail delivery service.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver contact message: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
