package analysis

import "fmt"

// Stage names a step of the analysis pipeline.
type Stage string

// Pipeline stages, in execution order.
const (
	StageResolve   Stage = "resolve"
	StageIngest    Stage = "ingest"
	StageNormalize Stage = "normalize"
	StageEnrich    Stage = "enrich"
	StageValidate  Stage = "validate"
	StageDetect    Stage = "detect"
)

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AnalysisError is a detector failure: a returned error or a recovered
// panic.
type AnalysisError struct {
	Detector string
	Cause    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("detector %s failed: %v", e.Detector, e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
