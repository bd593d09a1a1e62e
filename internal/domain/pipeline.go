package domain

// Stage is a state of the per-upload pipeline state machine.
type Stage string

const (
	StageReceived        Stage = "RECEIVED"
	StageOriginalStored  Stage = "ORIGINAL_STORED"
	StageURLResolved     Stage = "URL_RESOLVED"
	StageCodeReady       Stage = "CODE_READY"
	StageDerivedComposed Stage = "DERIVED_COMPOSED"
	StageDerivedStored   Stage = "DERIVED_STORED"
	StageRecorded        Stage = "RECORDED"
	StageFailed          Stage = "FAILED"
)

// Next returns the stage that follows s on the success path. Terminal
// stages return themselves.
func (s Stage) Next() Stage {
	switch s {
	case StageReceived:
		return StageOriginalStored
	case StageOriginalStored:
		return StageURLResolved
	case StageURLResolved:
		return StageCodeReady
	case StageCodeReady:
		return StageDerivedComposed
	case StageDerivedComposed:
		return StageDerivedStored
	case StageDerivedStored:
		return StageRecorded
	default:
		return s
	}
}

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == StageRecorded || s == StageFailed
}

// Variant is the composition strategy chosen once at pipeline entry.
type Variant string

const (
	VariantPDFOriginal     Variant = "pdf_original"
	VariantOtherSingleFile Variant = "other_single_file"
	VariantImageBatch      Variant = "image_batch"
)

// StageError carries the stage a pipeline run failed in. The wrapped error
// keeps its taxonomy type (see pkg/errors).
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
