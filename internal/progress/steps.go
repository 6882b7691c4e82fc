package progress

// Step is an index into the fixed, linearly ordered onboarding pipeline.
type Step int

// Pipeline stages in execution order. The pipeline is a fixed sequence;
// there is no branching and no parallel stage execution.
const (
	StepSubmission        Step = 0
	StepContextExtraction Step = 1
	StepKeywordDiscovery  Step = 2
	StepPhraseGeneration  Step = 3
	StepModelQuerying     Step = 4
	StepComplete          Step = 5
)

var stepNames = map[Step]string{
	StepSubmission:        "submission",
	StepContextExtraction: "context_extraction",
	StepKeywordDiscovery:  "keyword_discovery",
	StepPhraseGeneration:  "phrase_generation",
	StepModelQuerying:     "model_querying",
	StepComplete:          "complete",
}

// String returns the stage label used in logs, reports and API payloads.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether a record at this step is past the last
// working stage.
func (s Step) Terminal() bool {
	return s >= StepComplete
}

// requirement names one field a stage must have produced before any
// later stage can be considered substantiated.
type requirement struct {
	Field string
	Check func(*StageBundle) bool
}

// stageRequirements maps each stage to the fields that must be present
// and non-empty once the record claims to have passed it. Submission
// has no prerequisites; reaching stage n requires the outputs of
// stages 1..n.
var stageRequirements = map[Step][]requirement{
	StepContextExtraction: {
		{Field: "domainUrl", Check: func(b *StageBundle) bool { return b.DomainURL != "" }},
		{Field: "domainId", Check: func(b *StageBundle) bool { return b.DomainID > 0 }},
	},
	StepKeywordDiscovery: {
		{Field: "brandContext", Check: func(b *StageBundle) bool { return b.BrandContext != "" }},
	},
	StepPhraseGeneration: {
		{Field: "selectedKeywords", Check: func(b *StageBundle) bool { return len(b.SelectedKeywords) > 0 }},
	},
	StepModelQuerying: {
		{Field: "generatedPhrases", Check: func(b *StageBundle) bool { return len(b.GeneratedPhrases) > 0 }},
	},
	StepComplete: {
		{Field: "queryResults", Check: func(b *StageBundle) bool { return b.hasQueryResults() }},
		{Field: "queryStats", Check: func(b *StageBundle) bool { return b.hasQueryStats() }},
	},
}
