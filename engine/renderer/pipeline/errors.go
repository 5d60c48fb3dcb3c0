package pipeline

import "fmt"

// SpecializationStage names the step of specialization that failed.
type SpecializationStage int

const (
	// StageBase is the base mesh pipeline a specializer starts from.
	StageBase SpecializationStage = iota
	// StageOverride is the specializer's own changes to the base descriptor.
	StageOverride
)

func (s SpecializationStage) String() string {
	switch s {
	case StageBase:
		return "base"
	case StageOverride:
		return "override"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SpecializationError reports a failed pipeline specialization. The cause is kept
// unchanged and reachable through errors.Is / errors.As.
type SpecializationError struct {
	// Stage is the step that failed.
	Stage SpecializationStage
	// Label is the label of the pipeline being specialized.
	Label string
	// Err is the underlying cause.
	Err error
}

func (e *SpecializationError) Error() string {
	return fmt.Sprintf("specialize %s: %s stage: %v", e.Label, e.Stage, e.Err)
}

func (e *SpecializationError) Unwrap() error {
	return e.Err
}
