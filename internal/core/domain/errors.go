package domain

import "go.trai.ch/zerr"

// Error families. Every specific error below wraps exactly one of these, so callers
// can match on either the family or the specific kind with errors.Is.
var (
	// ErrValidation is the family of malformed registration input errors.
	ErrValidation = zerr.New("validation error")

	// ErrGraph is the family of model graph well-formedness errors.
	ErrGraph = zerr.New("graph error")

	// ErrStake is the family of collateral accounting errors.
	ErrStake = zerr.New("stake error")

	// ErrOrchestrator is the family of execution state transition errors.
	ErrOrchestrator = zerr.New("orchestrator error")

	// ErrCapacityExceeded is returned when an entity would exceed its persisted size bounds.
	ErrCapacityExceeded = zerr.New("capacity exceeded")

	// ErrNotFound is returned by the registry when a keyed entity does not exist.
	ErrNotFound = zerr.New("not found")

	// ErrAlreadyExists is returned by the registry when creating an entity whose key is taken.
	ErrAlreadyExists = zerr.New("already exists")
)

var (
	// ErrEmptyTensorList is returned when a task declares no inputs or no outputs.
	ErrEmptyTensorList = zerr.Wrap(ErrValidation, "empty tensor specification")

	// ErrEmptyShape is returned when a tensor spec has no dimensions.
	ErrEmptyShape = zerr.Wrap(ErrValidation, "invalid tensor shape")

	// ErrEmptyLocation is returned when a tensor spec is missing its data location.
	ErrEmptyLocation = zerr.Wrap(ErrValidation, "missing tensor location")

	// ErrMissingWeightLocation is returned when a task is registered without weights.
	ErrMissingWeightLocation = zerr.Wrap(ErrValidation, "missing weight location")

	// ErrEmptySpecializations is returned when a node declares no task capabilities.
	ErrEmptySpecializations = zerr.Wrap(ErrValidation, "empty specialization list")

	// ErrInvalidIdentifier is returned for zero task/model ids or empty identities.
	ErrInvalidIdentifier = zerr.Wrap(ErrValidation, "invalid identifier")

	// ErrInsufficientEntropy is returned when fewer than eight entropy bytes are supplied.
	ErrInsufficientEntropy = zerr.Wrap(ErrValidation, "insufficient entropy")
)

var (
	// ErrDanglingReference is returned when a connection names a task outside the model.
	ErrDanglingReference = zerr.Wrap(ErrGraph, "dangling task reference")

	// ErrDuplicateConnection is returned when two connections share the same endpoint key.
	ErrDuplicateConnection = zerr.Wrap(ErrGraph, "duplicate task connection")

	// ErrCycleDetected is returned when the connections among tasks form a cycle.
	ErrCycleDetected = zerr.Wrap(ErrGraph, "cycle detected")
)

var (
	// ErrBelowMinimum is returned when an initial stake is under the admission minimum.
	ErrBelowMinimum = zerr.Wrap(ErrStake, "stake below minimum")

	// ErrInsufficientStake is returned when a withdrawal exceeds the staked balance.
	ErrInsufficientStake = zerr.Wrap(ErrStake, "insufficient staked collateral")

	// ErrStakeOverflow is returned when an increase would wrap the balance.
	ErrStakeOverflow = zerr.Wrap(ErrStake, "stake amount too large")

	// ErrStakeUnauthorized is returned when someone other than the owner adjusts a stake.
	ErrStakeUnauthorized = zerr.Wrap(ErrStake, "unauthorized stake change")

	// ErrInvalidAmount is returned for zero-valued stake adjustments.
	ErrInvalidAmount = zerr.Wrap(ErrStake, "invalid stake amount")

	// ErrInsufficientFunds is returned when a registrant cannot cover the collateral.
	ErrInsufficientFunds = zerr.Wrap(ErrStake, "insufficient spendable balance")
)

var (
	// ErrTaskNotFound is returned when no status record matches the requested task.
	ErrTaskNotFound = zerr.Wrap(ErrOrchestrator, "task not found")

	// ErrInvalidTransition is returned when a record or execution is in the wrong state.
	ErrInvalidTransition = zerr.Wrap(ErrOrchestrator, "invalid transition")

	// ErrUnauthorized is returned when the caller may not perform the transition.
	ErrUnauthorized = zerr.Wrap(ErrOrchestrator, "unauthorized")

	// ErrIneligibleNode is returned when the assigned node is unregistered, under-staked,
	// or does not declare the task.
	ErrIneligibleNode = zerr.Wrap(ErrOrchestrator, "node not eligible for task")

	// ErrVerifierConflict is returned when a verifier is the node that produced the original result.
	ErrVerifierConflict = zerr.Wrap(ErrOrchestrator, "verifier must differ from original node")
)

var (
	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidConfig is returned when a loaded config fails validation.
	ErrInvalidConfig = zerr.New("invalid configuration")
)
