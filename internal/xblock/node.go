package xblock

import (
	"encoding/json"
	"strings"
)

// Node is one block of a course outline as served by Studio.
//
// Pointer fields are optional on the wire; nil means the server did not send
// the attribute (or sent null).
type Node struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Category    string          `json:"category"`
	Data        json.RawMessage `json:"data,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`

	// StudioURL is the Studio page for this block, or nil if it has none.
	StudioURL *string `json:"studio_url,omitempty"`

	ChildInfo    *ChildInfo    `json:"child_info,omitempty"`
	AncestorInfo *AncestorInfo `json:"ancestor_info,omitempty"`

	// HasChanges is true when there are edits newer than the published version
	// (or no published version exists yet).
	HasChanges         *bool `json:"has_changes,omitempty"`
	Published          *bool `json:"published,omitempty"`
	VisibleToStaffOnly *bool `json:"visible_to_staff_only,omitempty"`

	EditedOn    *string `json:"edited_on,omitempty"`
	EditedBy    *string `json:"edited_by,omitempty"`
	PublishedOn *string `json:"published_on,omitempty"`
	PublishedBy *string `json:"published_by,omitempty"`

	ReleasedToStudents *bool `json:"released_to_students,omitempty"`
	// ReleaseDate is nil when the release is unscheduled.
	ReleaseDate *string `json:"release_date,omitempty"`
	// ReleaseDateFrom names the block the release date is inherited from.
	ReleaseDateFrom            *string `json:"release_date_from,omitempty"`
	CurrentlyVisibleToStudents *bool   `json:"currently_visible_to_students,omitempty"`

	DueDate *string `json:"due_date,omitempty"`
	// Format is the grading policy type ("Homework", "Exam", ...).
	Format        *string         `json:"format,omitempty"`
	CourseGraders json.RawMessage `json:"course_graders,omitempty"`
	Graded        *bool           `json:"graded,omitempty"`
}

// ChildInfo describes a block's children and the primary child category.
type ChildInfo struct {
	Category    string  `json:"category,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Children    []*Node `json:"children"`

	// Extra keeps keys this client does not model so they survive a round-trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// AncestorInfo lists a block's ancestors, nearest first.
type AncestorInfo struct {
	Ancestors []*Node `json:"ancestors"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (n *Node) HasChildren() bool {
	return n != nil && n.ChildInfo != nil && len(n.ChildInfo.Children) > 0
}

func (n *Node) Children() []*Node {
	if n == nil || n.ChildInfo == nil {
		return nil
	}
	return n.ChildInfo.Children
}

func (n *Node) Ancestors() []*Node {
	if n == nil || n.AncestorInfo == nil {
		return nil
	}
	return n.AncestorInfo.Ancestors
}

func (n *Node) Kind() Kind { return KindOf(n.Category) }

func (n *Node) IsCourse() bool     { return n.Kind() == KindCourse }
func (n *Node) IsChapter() bool    { return n.Kind() == KindChapter }
func (n *Node) IsSequential() bool { return n.Kind() == KindSequential }
func (n *Node) IsVertical() bool   { return n.Kind() == KindVertical }

// IsEditable reports whether the block carries section scheduling settings.
func (n *Node) IsEditable() bool {
	return n.IsSequential() || n.IsChapter()
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's subtree.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	var walk func(node *Node, depth int)
	walk = func(node *Node, depth int) {
		if node == nil {
			return
		}
		if !fn(node, depth) {
			return
		}
		for _, ch := range node.Children() {
			walk(ch, depth+1)
		}
	}
	walk(n, 0)
}

// Find returns the node with the given id in n's subtree.
func (n *Node) Find(id string) (*Node, bool) {
	id = strings.TrimSpace(id)
	var found *Node
	n.Walk(func(node *Node, _ int) bool {
		if found != nil {
			return false
		}
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found, found != nil
}

// Get returns the value of a string attribute by its wire name.
func (n *Node) Get(field string) (string, bool) {
	if p := n.stringField(field); p != nil {
		if *p == nil {
			return "", true
		}
		return **p, true
	}
	switch field {
	case "id":
		return n.ID, true
	case "display_name":
		return n.DisplayName, true
	case "category":
		return n.Category, true
	}
	return "", false
}

// Set assigns a string attribute by its wire name. It reports false for
// fields that are not string-valued.
func (n *Node) Set(field, value string) bool {
	if p := n.stringField(field); p != nil {
		v := value
		*p = &v
		return true
	}
	switch field {
	case "display_name":
		n.DisplayName = value
		return true
	case "category":
		n.Category = value
		return true
	}
	return false
}

func (n *Node) stringField(field string) **string {
	switch field {
	case "studio_url":
		return &n.StudioURL
	case "edited_on":
		return &n.EditedOn
	case "edited_by":
		return &n.EditedBy
	case "published_on":
		return &n.PublishedOn
	case "published_by":
		return &n.PublishedBy
	case "release_date":
		return &n.ReleaseDate
	case "release_date_from":
		return &n.ReleaseDateFrom
	case "due_date":
		return &n.DueDate
	case "format":
		return &n.Format
	}
	return nil
}

// Replace takes every attribute of a refreshed snapshot, nulls included, so
// the live model matches the server. The tree links (child_info,
// ancestor_info) are left alone so views holding child pointers stay valid.
func (n *Node) Replace(src *Node) {
	if n == nil || src == nil {
		return
	}
	children, ancestors := n.ChildInfo, n.AncestorInfo
	*n = *src
	n.ChildInfo, n.AncestorInfo = children, ancestors
}

// Clone returns a deep copy of n (tree links included).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil
	}
	out, err := Parse(b)
	if err != nil {
		return nil
	}
	return out
}

func BoolValue(b *bool) bool { return b != nil && *b }

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
