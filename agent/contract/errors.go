package contract

import (
	"errors"

	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")

	// ErrDeliveryFailure marks an outbound send that returned false.
	ErrDeliveryFailure = errors.New("outbound delivery failed")

	// ErrClassificationDegraded marks a capability result that is a fallback
	// rather than a real answer. It is observable but never fatal.
	ErrClassificationDegraded = errors.New("capability degraded to fallback")
)

// Store errors re-exported so callers can match on one taxonomy.
var (
	ErrNotFound             = schedulex.ErrNotFound
	ErrSlotConflict         = schedulex.ErrSlotConflict
	ErrInvalidSlot          = schedulex.ErrInvalidSlot
	ErrAppointmentCancelled = schedulex.ErrAppointmentCancelled
)
