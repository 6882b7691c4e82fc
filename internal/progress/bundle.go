package progress

import (
	"bytes"
	"encoding/json"
)

// KeywordPhrases holds the query phrases generated for one keyword.
// Order is preserved: phrases are queried in generation order.
type KeywordPhrases struct {
	Keyword string   `json:"keyword"`
	Phrases []string `json:"phrases"`
}

// StageBundle is the superset bag of everything any stage has produced
// so far for one subject. All fields are optional until their stage
// populates them; the bundle only grows across saves within a session
// and shrinks only on explicit reset.
//
// QueryResults and QueryStats are opaque to the engine: the model
// querying collaborator owns their shape, the engine only persists and
// round-trips them.
type StageBundle struct {
	DomainURL        string           `json:"domainUrl,omitempty"`
	DomainID         int64            `json:"domainId,omitempty"`
	BrandContext     string           `json:"brandContext,omitempty"`
	SelectedKeywords []string         `json:"selectedKeywords,omitempty"`
	GeneratedPhrases []KeywordPhrases `json:"generatedPhrases,omitempty"`
	QueryResults     json.RawMessage  `json:"queryResults,omitempty"`
	QueryStats       json.RawMessage  `json:"queryStats,omitempty"`
}

// jsonNull is what encoding/json produces for a nil value; an opaque
// field holding it counts as absent.
var jsonNull = []byte("null")

func rawPresent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return false
	}
	// An empty JSON array is a partial write, not meaningful content.
	return !bytes.Equal(raw, []byte("[]")) && !bytes.Equal(raw, []byte("{}"))
}

func (b *StageBundle) hasQueryResults() bool { return rawPresent(b.QueryResults) }
func (b *StageBundle) hasQueryStats() bool   { return rawPresent(b.QueryStats) }

// Merge folds other into b field by field: incoming populated fields
// overwrite, absent fields preserve what b already holds. This is what
// makes saves additive across a session and concurrent saves for
// disjoint field sets commutative.
func (b *StageBundle) Merge(other *StageBundle) {
	if other == nil {
		return
	}
	if other.DomainURL != "" {
		b.DomainURL = other.DomainURL
	}
	if other.DomainID > 0 {
		b.DomainID = other.DomainID
	}
	if other.BrandContext != "" {
		b.BrandContext = other.BrandContext
	}
	if len(other.SelectedKeywords) > 0 {
		b.SelectedKeywords = other.SelectedKeywords
	}
	if len(other.GeneratedPhrases) > 0 {
		b.GeneratedPhrases = other.GeneratedPhrases
	}
	if other.hasQueryResults() {
		b.QueryResults = other.QueryResults
	}
	if other.hasQueryStats() {
		b.QueryStats = other.QueryStats
	}
}

// MarshalJSON drops opaque fields holding null or an empty composite,
// so a serialized bundle never carries a value Merge would treat as
// absent. The Postgres upsert merges documents with the jsonb ||
// operator, which keeps stored data only for keys missing from the
// incoming document; an explicit null would otherwise clobber results.
func (b StageBundle) MarshalJSON() ([]byte, error) {
	type bundleAlias StageBundle
	cp := bundleAlias(b)
	if !rawPresent(cp.QueryResults) {
		cp.QueryResults = nil
	}
	if !rawPresent(cp.QueryStats) {
		cp.QueryStats = nil
	}
	return json.Marshal(cp)
}

// Clone returns a deep copy so stored bundles never alias caller slices.
func (b *StageBundle) Clone() *StageBundle {
	if b == nil {
		return &StageBundle{}
	}
	cp := *b
	if b.SelectedKeywords != nil {
		cp.SelectedKeywords = append([]string(nil), b.SelectedKeywords...)
	}
	if b.GeneratedPhrases != nil {
		cp.GeneratedPhrases = make([]KeywordPhrases, len(b.GeneratedPhrases))
		for i, kp := range b.GeneratedPhrases {
			cp.GeneratedPhrases[i] = KeywordPhrases{
				Keyword: kp.Keyword,
				Phrases: append([]string(nil), kp.Phrases...),
			}
		}
	}
	if b.QueryResults != nil {
		cp.QueryResults = append(json.RawMessage(nil), b.QueryResults...)
	}
	if b.QueryStats != nil {
		cp.QueryStats = append(json.RawMessage(nil), b.QueryStats...)
	}
	return &cp
}

// PhraseCount returns the total number of generated phrases across all
// keywords.
func (b *StageBundle) PhraseCount() int {
	n := 0
	for _, kp := range b.GeneratedPhrases {
		n += len(kp.Phrases)
	}
	return n
}

// DataStatus summarizes which stage outputs a bundle actually holds.
// It is returned alongside resume results so callers can render
// per-stage readiness without re-deriving the requirements table.
type DataStatus struct {
	HasDomainContext bool `json:"hasDomainContext"`
	HasKeywords      bool `json:"hasKeywords"`
	HasPhrases       bool `json:"hasPhrases"`
	HasModelResults  bool `json:"hasModelResults"`
}

// Status derives the per-stage readiness flags for a bundle.
func (b *StageBundle) Status() DataStatus {
	return DataStatus{
		HasDomainContext: b.BrandContext != "",
		HasKeywords:      len(b.SelectedKeywords) > 0,
		HasPhrases:       len(b.GeneratedPhrases) > 0,
		HasModelResults:  b.hasQueryResults(),
	}
}
