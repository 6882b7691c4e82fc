package progress

// FieldCheck reports the outcome of checking one stage's required
// fields during validation.
type FieldCheck struct {
	Step         Step   `json:"step"`
	StepName     string `json:"stepName"`
	MissingField string `json:"missingField,omitempty"`
	Satisfied    bool   `json:"satisfied"`
}

// Outcome is the result of validating one record: the highest step the
// present data actually substantiates, and a per-stage report for
// diagnostics and user messaging.
type Outcome struct {
	CorrectedStep Step
	FieldReport   []FieldCheck
}

// FirstMissing returns the earliest missing field name, or "" when the
// record validated clean up to its claimed step.
func (o Outcome) FirstMissing() string {
	for _, fc := range o.FieldReport {
		if !fc.Satisfied {
			return fc.MissingField
		}
	}
	return ""
}

// Validate walks the stage list from ContextExtraction upward and
// computes the highest step n such that the required fields of every
// stage 1..n are present and non-empty, capped at the record's claimed
// step. Validation only ever lowers a step: a client that has not
// advanced past stage k is never fast-forwarded, even when later-stage
// data happens to be present.
//
// Empty slices count as absent. A partial write can leave a key set
// with no meaningful content; treating it as present would let a
// crashed session resume past data it does not have.
func Validate(rec *Record) Outcome {
	out := Outcome{CorrectedStep: StepSubmission}
	if rec == nil {
		return out
	}

	bundle := rec.StepData
	if bundle == nil {
		bundle = &StageBundle{}
	}

	substantiated := StepComplete
	broken := false
	for step := StepContextExtraction; step <= StepComplete; step++ {
		check := FieldCheck{Step: step, StepName: step.String(), Satisfied: true}
		for _, req := range stageRequirements[step] {
			if !req.Check(bundle) {
				check.Satisfied = false
				check.MissingField = req.Field
				break
			}
		}
		out.FieldReport = append(out.FieldReport, check)

		// The first violated stage bounds everything above it,
		// even if later-stage data is present.
		if !check.Satisfied && !broken {
			substantiated = step - 1
			broken = true
		}
	}

	out.CorrectedStep = substantiated
	if rec.CurrentStep < out.CorrectedStep {
		out.CorrectedStep = rec.CurrentStep
	}
	return out
}
