package medication

import "errors"

// Domain errors for the medication package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, medication.ErrMedicationNotFound) {
//	    // handle not found case
//	}
var (
	// ErrMedicationNotFound is returned when a medication ID does not exist in a registry.
	ErrMedicationNotFound = errors.New("medication: not found")

	// ErrEntryNotFound is returned when a request names an entry that is not configured.
	ErrEntryNotFound = errors.New("medication: entry not found")

	// ErrPersonNotFound is returned when no entry has a person with the given ID.
	ErrPersonNotFound = errors.New("medication: person not found")

	// ErrInvalidMedication is returned when a medication declaration fails validation.
	ErrInvalidMedication = errors.New("medication: invalid")

	// ErrInvalidPerson is returned when a person declaration fails validation.
	ErrInvalidPerson = errors.New("medication: invalid person")

	// ErrInvalidDoseTime is returned when a dose time is not a valid HH:MM:SS wall-clock time.
	ErrInvalidDoseTime = errors.New("medication: invalid dose time")

	// ErrDuplicateNFC is returned when two medications in one registry declare the same tag.
	ErrDuplicateNFC = errors.New("medication: duplicate nfc id")

	// ErrInvalidInventory is returned when an inventory update is missing or negative.
	ErrInvalidInventory = errors.New("medication: invalid inventory")

	// ErrInvalidRequest is returned when a service payload cannot be decoded.
	ErrInvalidRequest = errors.New("medication: invalid request")

	// ErrNotificationFailed wraps sink failures. It is logged, never returned to callers.
	ErrNotificationFailed = errors.New("medication: notification failed")

	// ErrSessionNotFound is returned when a tag-learning session ID does not exist.
	ErrSessionNotFound = errors.New("medication: learn session not found")
)
