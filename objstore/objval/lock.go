package objval

// LockMode represents the possible retention modes for a blob.
//
// NOTE: Retention metadata is advisory only, the emulator stores it but does not enforce it.
type LockMode string

const (
	// LockModeUndefined means no retention mode has been set.
	LockModeUndefined LockMode = ""

	// LockModeGovernance is a retention mode which may be lifted with special permissions.
	LockModeGovernance LockMode = "GOVERNANCE"

	// LockModeCompliance is a retention mode which may not be lifted until the retention period expires.
	LockModeCompliance LockMode = "COMPLIANCE"
)

// LegalHoldStatus represents the legal hold state of a blob.
type LegalHoldStatus string

const (
	// LegalHoldStatusOff means no legal hold is active.
	LegalHoldStatusOff LegalHoldStatus = "OFF"

	// LegalHoldStatusOn means a legal hold is active.
	LegalHoldStatusOn LegalHoldStatus = "ON"
)
