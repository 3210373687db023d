package rased

import (
	"encoding/json"
	"fmt"
)

const (
	keyBehavior = "comportement"
	keyLearning = "apprentissages"
)

var recordKeys = map[string]struct{}{
	"id": {}, "name": {}, "meta": {}, "settings": {}, "etablissement": {}, "eleve": {},
	"famille": {}, "difficultes": {}, "reponses_ecole": {}, "sante": {}, "suivis_exterieurs": {},
	"place_parents": {}, keyBehavior: {}, keyLearning: {}, "apprentissages_detail": {},
	"remarques_besoins": {}, "besoins_prioritaires": {}, "conformites": {},
}

// IsRecordKey reports whether key is a top-level StudentRecord key.
func IsRecordKey(key string) bool {
	_, ok := recordKeys[key]
	return ok
}

// UnmarshalJSON decodes a record, stamping the evaluation generation when the
// marker is missing and keeping unknown keys in Extra.
func (r *StudentRecord) UnmarshalJSON(data []byte) error {
	type plain StudentRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("rased: decode student record: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("rased: decode student record: %w", err)
	}

	gen := p.Meta.EvaluationSchema
	if gen != GenerationLegacy && gen != GenerationCurrent {
		gen = DetectGeneration(raw[keyBehavior], raw[keyLearning])
	}
	behavior, err := decodeEvaluations(raw[keyBehavior], gen)
	if err != nil {
		return err
	}
	learning, err := decodeEvaluations(raw[keyLearning], gen)
	if err != nil {
		return err
	}
	p.Behavior = behavior
	p.Learning = learning
	p.Meta.EvaluationSchema = gen
	if p.ExternalFollowUps == nil {
		p.ExternalFollowUps = []ExternalFollowUp{}
	}

	p.Extra = nil
	for key, value := range raw {
		if IsRecordKey(key) {
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return fmt.Errorf("rased: decode student record key %q: %w", key, err)
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[key] = decoded
	}

	*r = StudentRecord(p)
	return nil
}

// MarshalJSON encodes the record with its evaluation lists and retained keys.
func (r StudentRecord) MarshalJSON() ([]byte, error) {
	type plain StudentRecord
	p := plain(r)
	if r.Behavior.Generation != GenerationUnknown {
		p.Meta.EvaluationSchema = r.Behavior.Generation
	}
	if p.ExternalFollowUps == nil {
		p.ExternalFollowUps = []ExternalFollowUp{}
	}
	base, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	behavior := r.Behavior
	learning := r.Learning
	if behavior.Generation == GenerationUnknown {
		behavior.Generation = p.Meta.EvaluationSchema
	}
	if learning.Generation == GenerationUnknown {
		learning.Generation = p.Meta.EvaluationSchema
	}
	if out[keyBehavior], err = json.Marshal(behavior); err != nil {
		return nil, err
	}
	if out[keyLearning], err = json.Marshal(learning); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if IsRecordKey(key) {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("rased: encode student record key %q: %w", key, err)
		}
		out[key] = encoded
	}
	return json.Marshal(out)
}

// ToMap returns the JSON object form of the record, the shape used by the
// path mutator and rule expressions.
func (r StudentRecord) ToMap() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordFromMap decodes the JSON object form produced by ToMap.
func RecordFromMap(doc map[string]any) (StudentRecord, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return StudentRecord{}, err
	}
	var rec StudentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return StudentRecord{}, err
	}
	return rec, nil
}
