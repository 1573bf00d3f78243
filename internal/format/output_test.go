package format

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type textPayload struct{ Name string }

func (p textPayload) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, "name: "+p.Name+"\n")
	return err
}

func TestWrite_Formats(t *testing.T) {
	v := map[string]any{"data": map[string]any{"display_name": "Week 1", "min_count": 12, "graded": true, "due": nil}}

	var buf bytes.Buffer
	if err := Write(&buf, v, "json", false); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"data":{"display_name":"Week 1","due":null,"graded":true,"min_count":12}}` {
		t.Fatalf("unexpected json %s", got)
	}

	buf.Reset()
	if err := Write(&buf, v, "edn", false); err != nil {
		t.Fatalf("edn: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{:data {:display-name "Week 1" :due nil :graded true :min-count 12}}` {
		t.Fatalf("unexpected edn %s", got)
	}

	buf.Reset()
	if err := Write(&buf, textPayload{Name: "Week 1"}, "text", false); err != nil {
		t.Fatalf("text: %v", err)
	}
	if buf.String() != "name: Week 1\n" {
		t.Fatalf("unexpected text %q", buf.String())
	}

	if err := Write(&buf, v, "text", false); err == nil {
		t.Fatalf("expected error for payload without text rendering")
	}
	if err := Write(&buf, v, "yaml", false); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestWriteEDN_PrettyNested(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEDN(&buf, map[string]any{"children": []any{"a", 1.5}}, true); err != nil {
		t.Fatalf("edn: %v", err)
	}
	want := "{\n  :children [\n    \"a\"\n    1.5\n  ]\n}\n"
	if buf.String() != want {
		t.Fatalf("unexpected pretty edn:\n%s", buf.String())
	}
}

func TestWriteEDN_CompactBlockTree(t *testing.T) {
	var buf bytes.Buffer
	block := map[string]any{
		"display_name": "Week 1",
		"child_info":   map[string]any{"children": []any{}},
		"metadata":     map[string]any{},
	}
	if err := WriteEDN(&buf, block, false); err != nil {
		t.Fatalf("edn: %v", err)
	}
	want := "{:child-info {:children []} :display-name \"Week 1\" :metadata {}}\n"
	if buf.String() != want {
		t.Fatalf("unexpected edn %q", buf.String())
	}
}
