package rased

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Generation identifies the evaluation schema of a record.
type Generation int

const (
	// GenerationUnknown is only seen before detection runs.
	GenerationUnknown Generation = iota
	// GenerationLegacy rows are flat {item|domaine, niveau, note} entries
	// rated on the four-point legacy scales.
	GenerationLegacy
	// GenerationCurrent rows are keyed by catalog item and rated on the
	// three-point scale, with frequency/quality for relational items.
	GenerationCurrent
)

func (g Generation) String() string {
	switch g {
	case GenerationLegacy:
		return "legacy"
	case GenerationCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// LegacyEntry is one row of the first evaluation schema.
type LegacyEntry struct {
	Item   string `json:"item,omitempty"`
	Domain string `json:"domaine,omitempty"`
	Level  string `json:"niveau"`
	Note   string `json:"note"`
}

// Key returns the item label or, for learning rows, the domain.
func (e LegacyEntry) Key() string {
	if e.Item != "" {
		return e.Item
	}
	return e.Domain
}

// Assessment is one row of the current evaluation schema. Relational items
// use Frequency and Quality instead of Evaluation.
type Assessment struct {
	Item        string `json:"item"`
	Evaluation  string `json:"evaluation,omitempty"`
	Frequency   string `json:"frequence,omitempty"`
	Quality     string `json:"qualite,omitempty"`
	Observation string `json:"observation"`
}

// Evaluations is a list of rows tagged with the generation that shaped them.
// Exactly one of Legacy and Current is used, chosen by Generation.
type Evaluations struct {
	Generation Generation
	Legacy     []LegacyEntry
	Current    []Assessment
}

// NewEvaluations returns an empty list of the current generation.
func NewEvaluations() Evaluations {
	return Evaluations{Generation: GenerationCurrent, Legacy: []LegacyEntry{}, Current: []Assessment{}}
}

// Len reports the number of rows of the active generation.
func (e Evaluations) Len() int {
	if e.Generation == GenerationLegacy {
		return len(e.Legacy)
	}
	return len(e.Current)
}

// Lookup finds a current-generation row by item.
func (e Evaluations) Lookup(item string) (Assessment, bool) {
	for _, row := range e.Current {
		if row.Item == item {
			return row, true
		}
	}
	return Assessment{}, false
}

// LookupLegacy finds a legacy row by item or domain.
func (e Evaluations) LookupLegacy(key string) (LegacyEntry, bool) {
	for _, row := range e.Legacy {
		if row.Key() == key {
			return row, true
		}
	}
	return LegacyEntry{}, false
}

// With returns a copy with the row for a.Item replaced or appended.
func (e Evaluations) With(a Assessment) Evaluations {
	out := e.Clone()
	for i := range out.Current {
		if out.Current[i].Item == a.Item {
			out.Current[i] = a
			return out
		}
	}
	out.Current = append(out.Current, a)
	return out
}

// Clone copies the row slices.
func (e Evaluations) Clone() Evaluations {
	out := Evaluations{Generation: e.Generation}
	out.Legacy = append(make([]LegacyEntry, 0, len(e.Legacy)), e.Legacy...)
	out.Current = append(make([]Assessment, 0, len(e.Current)), e.Current...)
	return out
}

// MarshalJSON writes the rows of the active generation, always as an array.
func (e Evaluations) MarshalJSON() ([]byte, error) {
	if e.Generation == GenerationLegacy {
		if e.Legacy == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(e.Legacy)
	}
	if e.Current == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.Current)
}

// UnmarshalJSON decodes rows using the receiver's generation when already
// stamped, otherwise the generation detected from the rows themselves.
func (e *Evaluations) UnmarshalJSON(data []byte) error {
	gen := e.Generation
	if gen == GenerationUnknown {
		gen = DetectGeneration(data)
	}
	decoded, err := decodeEvaluations(data, gen)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// DetectGeneration inspects raw evaluation lists once, when a record carries
// no schema marker. Rows keyed by "niveau" or "domaine" are legacy; anything
// else, including empty lists, is current.
func DetectGeneration(lists ...json.RawMessage) Generation {
	for _, list := range lists {
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(list, &rows); err != nil {
			continue
		}
		for _, row := range rows {
			if _, ok := row["niveau"]; ok {
				return GenerationLegacy
			}
			if _, ok := row["domaine"]; ok {
				return GenerationLegacy
			}
		}
	}
	return GenerationCurrent
}

func decodeEvaluations(data json.RawMessage, gen Generation) (Evaluations, error) {
	out := Evaluations{Generation: gen, Legacy: []LegacyEntry{}, Current: []Assessment{}}
	if gen == GenerationUnknown {
		out.Generation = GenerationCurrent
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return out, nil
	}
	var err error
	if out.Generation == GenerationLegacy {
		err = json.Unmarshal(trimmed, &out.Legacy)
	} else {
		err = json.Unmarshal(trimmed, &out.Current)
	}
	if err != nil {
		return Evaluations{}, fmt.Errorf("rased: decode %s evaluations: %w", out.Generation, err)
	}
	if out.Legacy == nil {
		out.Legacy = []LegacyEntry{}
	}
	if out.Current == nil {
		out.Current = []Assessment{}
	}
	return out, nil
}
