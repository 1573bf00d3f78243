package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteEDN writes an EDN rendering of v.
//
// Values go through encoding/json first so json tags (and custom marshalers
// such as xblock's child_info) decide the field names. Numbers are kept as
// json.Number so ids and counts print exactly.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	// Convert structs -> map[string]any using JSON tags.
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := ednEncoder{pretty: pretty, indent: 2}
	enc.writeAny(&buf, x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednEncoder struct {
	pretty bool
	indent int
}

func (e ednEncoder) writeAny(buf *bytes.Buffer, v any, level int) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("nil")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		buf.WriteString(strconv.Quote(t))
	case json.Number:
		buf.WriteString(t.String())
	case []any:
		e.writeVec(buf, t, level)
	case map[string]any:
		e.writeMap(buf, t, level)
	default:
		// Fallback: stringify.
		buf.WriteString(strconv.Quote(fmt.Sprintf("%v", v)))
	}
}

// writeVec prints lists such as a block's children; nested blocks indent one
// level per depth when pretty.
func (e ednEncoder) writeVec(buf *bytes.Buffer, xs []any, level int) {
	e.writeColl(buf, '[', ']', len(xs), level, func(i int) {
		e.writeAny(buf, xs[i], level+1)
	})
}

// writeMap prints an object as a keyword map with sorted keys, so the same
// block always renders the same way.
func (e ednEncoder) writeMap(buf *bytes.Buffer, m map[string]any, level int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.writeColl(buf, '{', '}', len(keys), level, func(i int) {
		buf.WriteByte(':')
		buf.WriteString(ednKeyword(keys[i]))
		buf.WriteByte(' ')
		e.writeAny(buf, m[keys[i]], level+1)
	})
}

func (e ednEncoder) writeColl(buf *bytes.Buffer, open, close byte, n, level int, item func(i int)) {
	buf.WriteByte(open)
	newline := func(depth int) {
		if e.pretty {
			buf.WriteByte('\n')
			buf.WriteString(strings.Repeat(" ", depth*e.indent))
		}
	}
	for i := 0; i < n; i++ {
		if i > 0 && !e.pretty {
			buf.WriteByte(' ')
		}
		newline(level + 1)
		item(i)
	}
	if n > 0 {
		newline(level)
	}
	buf.WriteByte(close)
}

// ednKeyword maps a JSON key to a keyword name: snake_case keys become
// kebab-case (release_date -> :release-date).
func ednKeyword(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return s
}
