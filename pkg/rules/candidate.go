// Package rules implements the causal rule engine for bowtie link
// suggestion.
//
// A bowtie diagram admits exactly four kinds of causal link:
//
//	Activity → Pressure        "causes"     (activity_pressure)
//	Pressure → Consequence     "leads_to"   (pressure_consequence)
//	Control  → Activity        "prevents"   (preventive_control)
//	Control  → Pressure        "prevents"   (preventive_control)
//	Control  → Consequence     "mitigates"  (protective_control)
//
// Every other direction is forbidden. This table is the defining business
// rule of the engine: no candidate outside it is ever produced, no matter
// how similar two labels look. Pressure→Activity, Consequence→Pressure,
// Activity→Consequence and Control→Control links do not exist.
//
// Candidate generation unions three independent signal sources:
//
//  1. Keyword themes: two items matching the same theme's keywords.
//  2. Similarity thresholding: text similarity at or above a configured
//     threshold, via any enabled similarity method.
//  3. Causal text patterns: connector wording in the source label paired
//     with outcome wording in the target label.
//
// Duplicates for one (from, to) pair are collapsed to the strongest
// derivation, with the number of corroborating methods retained for the
// confidence scorer.
package rules

import (
	"encoding/json"

	"github.com/orneryd/bowline/pkg/vocab"
)

// BowtiePosition places a link in the bowtie topology.
type BowtiePosition string

const (
	ActivityPressure    BowtiePosition = "activity_pressure"
	PressureConsequence BowtiePosition = "pressure_consequence"
	PreventiveControl   BowtiePosition = "preventive_control"
	ProtectiveControl   BowtiePosition = "protective_control"
)

// Positions lists all bowtie positions in display order.
var Positions = []BowtiePosition{
	ActivityPressure,
	PressureConsequence,
	PreventiveControl,
	ProtectiveControl,
}

// Relationship is the causal verb of a link. It is fully determined by the
// bowtie position and never stored independently.
type Relationship string

const (
	Causes    Relationship = "causes"
	LeadsTo   Relationship = "leads_to"
	Prevents  Relationship = "prevents"
	Mitigates Relationship = "mitigates"
)

// ControlCategory tags which side of the bowtie a control acts on.
// Like Relationship, it derives from the bowtie position alone.
type ControlCategory string

const (
	CategoryPreventive ControlCategory = "preventive"
	CategoryProtective ControlCategory = "protective"
	CategoryNone       ControlCategory = "none"
)

// Relationship returns the causal verb for a position.
func (p BowtiePosition) Relationship() Relationship {
	switch p {
	case ActivityPressure:
		return Causes
	case PressureConsequence:
		return LeadsTo
	case PreventiveControl:
		return Prevents
	case ProtectiveControl:
		return Mitigates
	}
	return ""
}

// ControlCategory returns the control category for a position.
func (p BowtiePosition) ControlCategory() ControlCategory {
	switch p {
	case PreventiveControl:
		return CategoryPreventive
	case ProtectiveControl:
		return CategoryProtective
	}
	return CategoryNone
}

// PositionFor returns the bowtie position for a typed pair, or false when
// the direction is forbidden.
//
// Control→Activity and Control→Pressure are both preventive; whether a
// given control is allowed to take that position at all is decided by its
// classification (see ClassifyControl), not by this table.
func PositionFor(from, to vocab.ItemType) (BowtiePosition, bool) {
	switch {
	case from == vocab.Activity && to == vocab.Pressure:
		return ActivityPressure, true
	case from == vocab.Pressure && to == vocab.Consequence:
		return PressureConsequence, true
	case from == vocab.Control && (to == vocab.Activity || to == vocab.Pressure):
		return PreventiveControl, true
	case from == vocab.Control && to == vocab.Consequence:
		return ProtectiveControl, true
	}
	return "", false
}

// ConfidenceLevel is the discrete quality band of a candidate.
type ConfidenceLevel string

const (
	VeryLow  ConfidenceLevel = "very_low"
	Low      ConfidenceLevel = "low"
	Medium   ConfidenceLevel = "medium"
	High     ConfidenceLevel = "high"
	VeryHigh ConfidenceLevel = "very_high"
)

// LinkCandidate is a proposed causal link between two vocabulary items.
//
// Candidates are value types: recomputed on demand, never mutated after
// generation. Relationship and control category are intentionally not
// fields; they derive from Position via pure functions, which eliminates
// the possibility of a candidate carrying a verb that disagrees with its
// position.
type LinkCandidate struct {
	FromID   string
	FromName string
	FromType vocab.ItemType
	ToID     string
	ToName   string
	ToType   vocab.ItemType

	Position   BowtiePosition
	Similarity float64 // raw signal strength in [0, 1]
	Method     string  // which signal source derived this candidate

	Confidence float64         // blended score, set by the confidence scorer
	Level      ConfidenceLevel // discrete band of Confidence

	// Multiplicity counts how many distinct methods independently derived
	// this (from, to) pair before deduplication.
	Multiplicity int
}

// Relationship returns the causal verb implied by the candidate's position.
func (c LinkCandidate) Relationship() Relationship {
	return c.Position.Relationship()
}

// ControlCategory returns the control category implied by the candidate's
// position.
func (c LinkCandidate) ControlCategory() ControlCategory {
	return c.Position.ControlCategory()
}

// MarshalJSON emits the candidate with its derived fields included, so
// consumers see the full wire shape without being able to set the derived
// values independently.
func (c LinkCandidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FromID          string          `json:"from_id"`
		FromName        string          `json:"from_name"`
		FromType        vocab.ItemType  `json:"from_type"`
		ToID            string          `json:"to_id"`
		ToName          string          `json:"to_name"`
		ToType          vocab.ItemType  `json:"to_type"`
		Relationship    Relationship    `json:"relationship"`
		Similarity      float64         `json:"similarity"`
		Method          string          `json:"method"`
		Confidence      float64         `json:"confidence"`
		ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
		BowtiePosition  BowtiePosition  `json:"bowtie_position"`
		ControlCategory ControlCategory `json:"control_category"`
		Multiplicity    int             `json:"multiplicity,omitempty"`
	}{
		FromID:          c.FromID,
		FromName:        c.FromName,
		FromType:        c.FromType,
		ToID:            c.ToID,
		ToName:          c.ToName,
		ToType:          c.ToType,
		Relationship:    c.Relationship(),
		Similarity:      c.Similarity,
		Method:          c.Method,
		Confidence:      c.Confidence,
		ConfidenceLevel: c.Level,
		BowtiePosition:  c.Position,
		ControlCategory: c.ControlCategory(),
		Multiplicity:    c.Multiplicity,
	})
}
