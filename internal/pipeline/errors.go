package pipeline

import "fmt"

// Typed per-stage errors. Task errors never propagate past the task boundary:
// they are captured into the task's Result and only the scheduler decides
// process-wide fatality.

// CloneError is a network or ref failure while fetching the source. Fatal to
// the task.
type CloneError struct {
	Project string
	Err     error
}

func (e *CloneError) Error() string { return fmt.Sprintf("clone %s: %v", e.Project, e.Err) }
func (e *CloneError) Unwrap() error { return e.Err }

// PatchError is a malformed source tree the registered patch could not fix.
// Fatal to the task.
type PatchError struct {
	Project string
	Err     error
}

func (e *PatchError) Error() string { return fmt.Sprintf("patch %s: %v", e.Project, e.Err) }
func (e *PatchError) Unwrap() error { return e.Err }

// BuildError is a non-zero exit of the external documentation build tool.
// Fatal to the task.
type BuildError struct {
	Project string
	Err     error
}

func (e *BuildError) Error() string { return fmt.Sprintf("build %s: %v", e.Project, e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// ReferenceBuildError is a failure of the optional reference-documentation
// build. The task degrades to partial success instead of failing.
type ReferenceBuildError struct {
	Project string
	Err     error
}

func (e *ReferenceBuildError) Error() string {
	return fmt.Sprintf("reference build %s: %v", e.Project, e.Err)
}
func (e *ReferenceBuildError) Unwrap() error { return e.Err }

// ConversionError is a plaintext conversion that left zero usable content.
// Conversion problems that still yield usable pages degrade to partial
// success instead.
type ConversionError struct {
	Project string
	Err     error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("convert %s: %v", e.Project, e.Err) }
func (e *ConversionError) Unwrap() error { return e.Err }

// PlacementError is a filesystem failure while normalizing or installing the
// artifact into the staging tree. Fatal to the task.
type PlacementError struct {
	Project string
	Err     error
}

func (e *PlacementError) Error() string { return fmt.Sprintf("place %s: %v", e.Project, e.Err) }
func (e *PlacementError) Unwrap() error { return e.Err }
