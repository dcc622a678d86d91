package conditions

import (
	"errors"
	"fmt"
)

// Build failure reasons reported by the compiler.
const (
	// ReasonCycleDetected means policies include each other, directly or
	// through encapsulated assertions.
	ReasonCycleDetected = "CycleDetected"

	// ReasonDependencyNotFound means a referenced entity exists neither in the
	// bundle, its dependency bundles, nor the missing-entity table.
	ReasonDependencyNotFound = "DependencyNotFound"

	// ReasonAmbiguousDependency means more than one dependency bundle provides
	// the same referenced entity.
	ReasonAmbiguousDependency = "AmbiguousDependency"

	// ReasonUnstableReference means a reference into a dependency bundle
	// cannot name the identity that bundle deploys the entity with.
	ReasonUnstableReference = "UnstableReference"

	// ReasonMissingElement means a policy assertion lacks a required child element.
	ReasonMissingElement = "MissingElement"

	// ReasonUnsupportedMode means a builder was asked for an unknown build mode.
	ReasonUnsupportedMode = "UnsupportedMode"

	// ReasonDuplicatePriority means two builders share a pipeline priority.
	ReasonDuplicatePriority = "DuplicatePriority"

	// ReasonInvalidContent means entity content could not be parsed or encoded.
	ReasonInvalidContent = "InvalidContent"

	// ReasonValidationFailed means the manifest itself is inconsistent.
	ReasonValidationFailed = "ValidationFailed"
)

// Warning reasons for identity overrides that were ignored.
const (
	ReasonInvalidID   = "InvalidID"
	ReasonInvalidGUID = "InvalidGUID"
)

// BuildError is a compile failure the user must fix in the bundle sources.
// Entity names the policy or entity being built when the failure happened.
type BuildError struct {
	Reason string
	Entity string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("%s in %q: %v", e.Reason, e.Entity, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Errorf returns a BuildError with a formatted cause.
func Errorf(reason, entity, format string, a ...any) error {
	return &BuildError{Reason: reason, Entity: entity, Err: fmt.Errorf(format, a...)}
}

// IsBuildError reports whether err (or any error in its chain) is a BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// ReasonOf returns the reason of the first BuildError in err's chain, or "".
func ReasonOf(err error) string {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Reason
	}
	return ""
}
