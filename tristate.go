package rased

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TriState distinguishes an unanswered question from an explicit "No".
type TriState int

const (
	Unanswered TriState = iota
	Yes
	No
)

func (t TriState) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unanswered"
	}
}

// Answered reports whether the question received a Yes or a No.
func (t TriState) Answered() bool {
	return t == Yes || t == No
}

// TriStateOf maps a boolean answer onto the tri-state scale.
func TriStateOf(answer bool) TriState {
	if answer {
		return Yes
	}
	return No
}

// ParseTriState accepts the spellings produced by forms and CLIs. The empty
// string maps to Unanswered.
func ParseTriState(value string) (TriState, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "null", "unanswered", "unset":
		return Unanswered, nil
	case "true", "yes", "oui", "1":
		return Yes, nil
	case "false", "no", "non", "0":
		return No, nil
	default:
		return Unanswered, fmt.Errorf("rased: invalid tri-state value %q", value)
	}
}

// MarshalJSON encodes Unanswered as null and the answers as booleans.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, booleans and the string spellings of ParseTriState.
func (t *TriState) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "null", "":
		*t = Unanswered
		return nil
	case "true":
		*t = Yes
		return nil
	case "false":
		*t = No
		return nil
	}
	raw, err := strconv.Unquote(string(trimmed))
	if err != nil {
		var probe any
		if jsonErr := json.Unmarshal(trimmed, &probe); jsonErr != nil {
			return jsonErr
		}
		return fmt.Errorf("rased: invalid tri-state value %s", trimmed)
	}
	parsed, err := ParseTriState(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
