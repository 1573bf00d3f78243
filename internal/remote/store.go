package remote

import (
	"context"
	"errors"
	"fmt"

	"studio-cli/internal/xblock"
)

// Store is the authoritative home of a course outline.
type Store interface {
	// Fetch returns the block with its descendants and ancestors.
	Fetch(ctx context.Context, id string) (*xblock.Node, error)
	// UpdateFields applies u to the block in a single request.
	UpdateFields(ctx context.Context, id string, u Update) error
}

// Update is the body of a block write.
//
// Metadata keys use server names (see xblock.PreprocessFieldNames). A nil
// value clears the field.
type Update struct {
	Metadata   map[string]any `json:"metadata,omitempty"`
	GraderType *string        `json:"graderType,omitempty"`
	Publish    string         `json:"publish,omitempty"`
}

// Publish actions.
const (
	PublishMakePublic     = "make_public"
	PublishDiscardChanges = "discard_changes"
)

// NotGraded is the grader type that clears a block's grading format.
const NotGraded = "notgraded"

// FieldUpdate is the write for a single metadata field.
func FieldUpdate(field string, value any) Update {
	return Update{Metadata: xblock.PreprocessFieldNames(map[string]any{field: value})}
}

func (u Update) IsEmpty() bool {
	return len(u.Metadata) == 0 && u.GraderType == nil && u.Publish == ""
}

var ErrNotFound = errors.New("block not found")

type notFoundError struct{ id string }

func (e notFoundError) Error() string { return fmt.Sprintf("block not found: %s", e.id) }

func (e notFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns an error matching ErrNotFound for id.
func NotFound(id string) error { return notFoundError{id: id} }

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}
