package xblock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidPayload matches every *InvalidPayloadError via errors.Is.
var ErrInvalidPayload = errors.New("invalid xblock payload")

// InvalidPayloadError reports a snapshot that does not have the shape of a
// block tree. Path locates the offending value, e.g.
// "child_info.children[2].ancestor_info.ancestors".
type InvalidPayloadError struct {
	Path   string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid xblock payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid xblock payload at %s: %s", e.Path, e.Reason)
}

func (e *InvalidPayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// Parse decodes a server snapshot into a Node. Every element of
// child_info.children and ancestor_info.ancestors is itself parsed into a
// *Node, recursively; absent keys are left nil.
func Parse(raw []byte) (*Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, &InvalidPayloadError{Reason: "expected an object"}
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		var ipe *InvalidPayloadError
		if errors.As(err, &ipe) {
			return nil, ipe
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &InvalidPayloadError{Path: te.Field, Reason: "unexpected " + te.Value}
		}
		return nil, &InvalidPayloadError{Reason: err.Error()}
	}
	return &n, nil
}

func parseNodeList(raw json.RawMessage, path string) ([]*Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		return nil, &InvalidPayloadError{Path: path, Reason: "expected a list"}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &InvalidPayloadError{Path: path, Reason: err.Error()}
	}
	out := make([]*Node, 0, len(elems))
	for i, el := range elems {
		elPath := path + "[" + strconv.Itoa(i) + "]"
		el = bytes.TrimSpace(el)
		if len(el) == 0 || el[0] != '{' {
			return nil, &InvalidPayloadError{Path: elPath, Reason: "expected an object"}
		}
		n, err := Parse(el)
		if err != nil {
			var ipe *InvalidPayloadError
			if errors.As(err, &ipe) {
				p := elPath
				if ipe.Path != "" {
					p += "." + ipe.Path
				}
				return nil, &InvalidPayloadError{Path: p, Reason: ipe.Reason}
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func splitObject(b []byte, path string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, &InvalidPayloadError{Path: path, Reason: "expected an object"}
	}
	return raw, nil
}

func (ci *ChildInfo) UnmarshalJSON(b []byte) error {
	raw, err := splitObject(b, "child_info")
	if err != nil {
		return err
	}
	out := ChildInfo{}
	if v, ok := raw["category"]; ok {
		if err := json.Unmarshal(v, &out.Category); err != nil {
			return &InvalidPayloadError{Path: "child_info.category", Reason: "expected a string"}
		}
		delete(raw, "category")
	}
	if v, ok := raw["display_name"]; ok {
		if err := json.Unmarshal(v, &out.DisplayName); err != nil {
			return &InvalidPayloadError{Path: "child_info.display_name", Reason: "expected a string"}
		}
		delete(raw, "display_name")
	}
	children, err := parseNodeList(raw["children"], "child_info.children")
	if err != nil {
		return err
	}
	delete(raw, "children")
	out.Children = children
	if len(raw) > 0 {
		out.Extra = raw
	}
	*ci = out
	return nil
}

func (ci ChildInfo) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range ci.Extra {
		out[k] = v
	}
	if ci.Category != "" {
		out["category"] = ci.Category
	}
	if ci.DisplayName != "" {
		out["display_name"] = ci.DisplayName
	}
	children := ci.Children
	if children == nil {
		children = []*Node{}
	}
	out["children"] = children
	return json.Marshal(out)
}

func (ai *AncestorInfo) UnmarshalJSON(b []byte) error {
	raw, err := splitObject(b, "ancestor_info")
	if err != nil {
		return err
	}
	ancestors, err := parseNodeList(raw["ancestors"], "ancestor_info.ancestors")
	if err != nil {
		return err
	}
	delete(raw, "ancestors")
	out := AncestorInfo{Ancestors: ancestors}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*ai = out
	return nil
}

func (ai AncestorInfo) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range ai.Extra {
		out[k] = v
	}
	ancestors := ai.Ancestors
	if ancestors == nil {
		ancestors = []*Node{}
	}
	out["ancestors"] = ancestors
	return json.Marshal(out)
}
