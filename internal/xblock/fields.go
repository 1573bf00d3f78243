package xblock

import (
	"bytes"
	"encoding/json"
	"strings"
)

// fieldConversions maps client-side field names to the names the server
// stores them under.
var fieldConversions = map[string]string{
	"release_date": "start",
	"due_date":     "due",
}

// ServerFieldName returns the server-side name of a client field.
func ServerFieldName(field string) string {
	if to, ok := fieldConversions[field]; ok {
		return to
	}
	return field
}

// ClientFieldName is the inverse of ServerFieldName.
func ClientFieldName(field string) string {
	for from, to := range fieldConversions {
		if to == field {
			return from
		}
	}
	return field
}

// PreprocessFieldNames renames client field names to server names before a
// metadata map is sent. Keys without a conversion pass through unchanged.
func PreprocessFieldNames(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[ServerFieldName(k)] = v
	}
	return out
}

// Grader is one assignment type of the course grading policy.
type Grader struct {
	ID         int     `json:"id"`
	Type       string  `json:"type"`
	MinCount   int     `json:"min_count"`
	DropCount  int     `json:"drop_count"`
	ShortLabel string  `json:"short_label,omitempty"`
	Weight     float64 `json:"weight"`
}

// Graders decodes course_graders. Studio sends it as a JSON-encoded string;
// a plain list is accepted too.
func (n *Node) Graders() ([]Grader, error) {
	raw := bytes.TrimSpace(n.CourseGraders)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &InvalidPayloadError{Path: "course_graders", Reason: err.Error()}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		raw = []byte(s)
	}
	var out []Grader
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &InvalidPayloadError{Path: "course_graders", Reason: "expected a list of graders"}
	}
	return out, nil
}

// SetGraders stores graders in the string-encoded form Studio uses.
func (n *Node) SetGraders(gs []Grader) error {
	inner, err := json.Marshal(gs)
	if err != nil {
		return err
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return err
	}
	n.CourseGraders = outer
	return nil
}
