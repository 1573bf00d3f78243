package xblock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParse_ChildrenBecomeNodes(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var kids []string
			for i := 0; i < n; i++ {
				kids = append(kids, fmt.Sprintf(`{"id":"seq-%d","category":"sequential","display_name":"Sub %d"}`, i, i))
			}
			raw := `{"id":"ch-1","category":"chapter","child_info":{"category":"sequential","children":[` + strings.Join(kids, ",") + `]}}`

			node, err := Parse([]byte(raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if node.ChildInfo == nil {
				t.Fatalf("expected child_info to be kept")
			}
			if got := len(node.ChildInfo.Children); got != n {
				t.Fatalf("expected %d children, got %d", n, got)
			}
			for i, ch := range node.ChildInfo.Children {
				if ch == nil {
					t.Fatalf("child %d is nil", i)
				}
				if want := fmt.Sprintf("seq-%d", i); ch.ID != want {
					t.Fatalf("child %d: expected id %q, got %q", i, want, ch.ID)
				}
				if !ch.IsSequential() {
					t.Fatalf("child %d: expected sequential, got %q", i, ch.Category)
				}
			}
			if got := node.HasChildren(); got != (n > 0) {
				t.Fatalf("HasChildren=%v with %d children", got, n)
			}
		})
	}
}

func TestParse_NestedTreeAndAncestors(t *testing.T) {
	raw := `{
		"id": "seq-1",
		"category": "sequential",
		"ancestor_info": {"ancestors": [
			{"id": "ch-1", "category": "chapter"},
			{"id": "course", "category": "course"}
		]},
		"child_info": {"children": [
			{"id": "unit-1", "category": "vertical", "child_info": {"children": [
				{"id": "html-1", "category": "html"}
			]}}
		]}
	}`
	node, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	anc := node.Ancestors()
	if len(anc) != 2 || anc[0].ID != "ch-1" || anc[1].ID != "course" {
		t.Fatalf("unexpected ancestors: %#v", anc)
	}
	unit := node.Children()[0]
	if !unit.HasChildren() {
		t.Fatalf("expected unit to have parsed children")
	}
	if got := unit.Children()[0].ID; got != "html-1" {
		t.Fatalf("expected grandchild html-1, got %q", got)
	}
	if found, ok := node.Find("html-1"); !ok || found.Category != "html" {
		t.Fatalf("Find(html-1) = %v, %v", found, ok)
	}
}

func TestParse_AbsentKeysAreNoOp(t *testing.T) {
	node, err := Parse([]byte(`{"display_name":"Default Display Name"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if node.ChildInfo != nil || node.AncestorInfo != nil {
		t.Fatalf("expected nil child/ancestor info")
	}
	if node.HasChildren() {
		t.Fatalf("expected HasChildren=false")
	}
	if node.DisplayName != "Default Display Name" {
		t.Fatalf("unexpected display name %q", node.DisplayName)
	}
}

func TestParse_KeepsSiblingKeys(t *testing.T) {
	raw := `{"id":"ch","child_info":{"category":"sequential","display_name":"Subsection","is_draft":true,"children":[]},"ancestor_info":{"depth":2,"ancestors":null}}`
	node, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if node.ChildInfo.Category != "sequential" || node.ChildInfo.DisplayName != "Subsection" {
		t.Fatalf("sibling keys lost: %#v", node.ChildInfo)
	}
	if string(node.ChildInfo.Extra["is_draft"]) != "true" {
		t.Fatalf("expected unknown child_info key to survive, got %#v", node.ChildInfo.Extra)
	}

	out, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ci := back["child_info"].(map[string]any)
	if ci["is_draft"] != true {
		t.Fatalf("expected is_draft in marshaled child_info, got %#v", ci)
	}
	ai := back["ancestor_info"].(map[string]any)
	if ai["depth"] != float64(2) {
		t.Fatalf("expected depth in marshaled ancestor_info, got %#v", ai)
	}
}

func TestParse_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{name: "not an object", raw: `["x"]`, path: ""},
		{name: "children not a list", raw: `{"child_info":{"children":"nope"}}`, path: "child_info.children"},
		{name: "ancestors not a list", raw: `{"ancestor_info":{"ancestors":{"id":"x"}}}`, path: "ancestor_info.ancestors"},
		{name: "child element not an object", raw: `{"child_info":{"children":[{"id":"a"},5]}}`, path: "child_info.children[1]"},
		{name: "child_info not an object", raw: `{"child_info":"x"}`, path: "child_info"},
		{
			name: "nested bad list",
			raw:  `{"child_info":{"children":[{"id":"a","child_info":{"children":[{"ancestor_info":{"ancestors":1}}]}}]}}`,
			path: "child_info.children[0].child_info.children[0].ancestor_info.ancestors",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			var ipe *InvalidPayloadError
			if !errors.As(err, &ipe) {
				t.Fatalf("expected *InvalidPayloadError, got %T", err)
			}
			if ipe.Path != tt.path {
				t.Fatalf("expected path %q, got %q (%v)", tt.path, ipe.Path, err)
			}
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	node, err := Parse([]byte(`{"id":"a","display_name":"A","child_info":{"children":[{"id":"b","display_name":"B"}]}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cp := node.Clone()
	cp.Children()[0].DisplayName = "changed"
	if node.Children()[0].DisplayName != "B" {
		t.Fatalf("expected clone to not share children")
	}
}
