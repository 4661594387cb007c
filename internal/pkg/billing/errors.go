package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureInvalid means the delivery could not be authenticated.
	ErrSignatureInvalid = errors.New("billing: webhook signature invalid")
	// ErrMissingSignature is an ErrSignatureInvalid without any signature header.
	ErrMissingSignature = fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	// ErrUnrecognizedEventType is returned for provider events nothing here handles.
	ErrUnrecognizedEventType = errors.New("billing: unrecognized event type")
	// ErrMissingMetadata means a completed checkout lacks the fields naming its intent.
	ErrMissingMetadata = errors.New("billing: checkout metadata missing")
	// ErrInvalidMetadata means the metadata is present but cannot be interpreted.
	ErrInvalidMetadata = errors.New("billing: checkout metadata invalid")
	// ErrUnknownReference means the metadata names a user or event that does not exist.
	ErrUnknownReference = errors.New("billing: referenced user or event not found")
	// ErrUnknownCustomer means no local user is mapped to the provider customer.
	ErrUnknownCustomer = errors.New("billing: no user mapped to provider customer")
	// ErrCustomerConflict means the provider customer is already mapped to a different user.
	ErrCustomerConflict = errors.New("billing: provider customer belongs to another user")
	// ErrSupersededSubscription means a cancellation refers to an older subscription.
	ErrSupersededSubscription = errors.New("billing: subscription superseded")
	// ErrInvalidPayload means a verified event carried an undecodable object.
	ErrInvalidPayload = errors.New("billing: event object could not be decoded")
	// ErrDuplicateDelivery means the checkout was already recorded in the ledger.
	ErrDuplicateDelivery = errors.New("billing: checkout already applied")
	// ErrPersistence wraps storage failures; the provider is expected to redeliver.
	ErrPersistence = errors.New("billing: persistence failure")
	// ErrNotConfigured means a required provider setting is empty.
	ErrNotConfigured = errors.New("billing: provider not configured")
)

// isAnomaly reports errors that are acknowledged to the provider but audited,
// because redelivering the same payload can never succeed.
func isAnomaly(err error) bool {
	return errors.Is(err, ErrMissingMetadata) ||
		errors.Is(err, ErrInvalidMetadata) ||
		errors.Is(err, ErrUnknownReference) ||
		errors.Is(err, ErrUnknownCustomer) ||
		errors.Is(err, ErrCustomerConflict) ||
		errors.Is(err, ErrInvalidPayload)
}
