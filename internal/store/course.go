package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"studio-cli/internal/remote"
	"studio-cli/internal/xblock"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var _ remote.Store = (*CourseStore)(nil)

// InvalidUpdateError rejects an update the store cannot apply.
type InvalidUpdateError struct {
	Field  string
	Reason string
}

func (e *InvalidUpdateError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

type blockRow struct {
	id       string
	parentID string
	position int
	node     *xblock.Node
}

type outline struct {
	byID     map[string]*blockRow
	children map[string][]*blockRow
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadOutline(ctx context.Context, q queryer) (*outline, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, parent_id, position, json FROM blocks ORDER BY parent_id, position, id`)
	if err != nil {
		return nil, errors.Wrap(err, "store: query blocks")
	}
	defer rows.Close()

	o := &outline{byID: map[string]*blockRow{}, children: map[string][]*blockRow{}}
	for rows.Next() {
		var r blockRow
		var raw string
		if err := rows.Scan(&r.id, &r.parentID, &r.position, &raw); err != nil {
			return nil, errors.Wrap(err, "store: scan block")
		}
		n, err := xblock.Parse([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "store: decode block %s", r.id)
		}
		n.ID = r.id
		r.node = n
		o.byID[r.id] = &r
		o.children[r.parentID] = append(o.children[r.parentID], &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "store: iterate blocks")
	}
	return o, nil
}

// ancestors returns the parent chain of id, nearest first.
func (o *outline) ancestors(id string) []*blockRow {
	var out []*blockRow
	seen := map[string]bool{id: true}
	cur := o.byID[id]
	for cur != nil && cur.parentID != "" && !seen[cur.parentID] {
		seen[cur.parentID] = true
		p := o.byID[cur.parentID]
		if p == nil {
			break
		}
		out = append(out, p)
		cur = p
	}
	return out
}

func (o *outline) root(id string) *blockRow {
	anc := o.ancestors(id)
	if len(anc) == 0 {
		return o.byID[id]
	}
	return anc[len(anc)-1]
}

func childCategory(category string) string {
	switch xblock.KindOf(category) {
	case xblock.KindCourse:
		return xblock.CategoryChapter
	case xblock.KindChapter:
		return xblock.CategorySequential
	case xblock.KindSequential:
		return xblock.CategoryVertical
	default:
		return ""
	}
}

func isContainer(category string) bool {
	return xblock.KindOf(category) != xblock.KindOther
}

type inherited struct {
	releaseDate *string
	from        string
}

// Fetch returns the block with its full subtree and its ancestor chain.
// Release dates are inherited from the nearest scheduled ancestor and the
// student visibility flags are computed here, as Studio does server-side.
func (s *CourseStore) Fetch(ctx context.Context, id string) (*xblock.Node, error) {
	id = strings.TrimSpace(id)
	o, err := loadOutline(ctx, s.db)
	if err != nil {
		return nil, err
	}
	row, ok := o.byID[id]
	if !ok {
		return nil, remote.NotFound(id)
	}

	anc := o.ancestors(id)
	inh := inherited{}
	for i := len(anc) - 1; i >= 0; i-- {
		inh = inheritFrom(anc[i].node, inh)
	}

	now := s.now().UTC()
	node := s.assemble(o, row, inh, now)
	if len(anc) > 0 {
		ai := &xblock.AncestorInfo{}
		for _, a := range anc {
			cp := *a.node
			cp.ChildInfo = nil
			cp.AncestorInfo = nil
			ai.Ancestors = append(ai.Ancestors, &cp)
		}
		node.AncestorInfo = ai
	}
	return node, nil
}

func inheritFrom(n *xblock.Node, inh inherited) inherited {
	if n.ReleaseDate != nil && strings.TrimSpace(*n.ReleaseDate) != "" {
		return inherited{releaseDate: n.ReleaseDate, from: n.DisplayName}
	}
	return inh
}

func (s *CourseStore) assemble(o *outline, row *blockRow, inh inherited, now time.Time) *xblock.Node {
	cp := *row.node
	n := &cp
	n.ChildInfo = nil
	n.AncestorInfo = nil

	if n.ReleaseDate == nil && inh.releaseDate != nil {
		rd := *inh.releaseDate
		from := inh.from
		n.ReleaseDate = &rd
		n.ReleaseDateFrom = &from
	} else {
		n.ReleaseDateFrom = nil
	}
	released := false
	if n.ReleaseDate != nil {
		if t, err := xblock.ParseDisplayDate(*n.ReleaseDate); err == nil {
			released = !t.After(now)
		}
	}
	visible := released && xblock.BoolValue(n.Published) && !xblock.BoolValue(n.VisibleToStaffOnly)
	n.ReleasedToStudents = &released
	n.CurrentlyVisibleToStudents = &visible

	if isContainer(n.Category) {
		ci := &xblock.ChildInfo{Category: childCategory(n.Category), Children: []*xblock.Node{}}
		next := inheritFrom(row.node, inh)
		for _, ch := range o.children[row.id] {
			ci.Children = append(ci.Children, s.assemble(o, ch, next, now))
		}
		n.ChildInfo = ci
	}
	return n
}

// Roots lists the top-level blocks (normally one per course).
func (s *CourseStore) Roots(ctx context.Context) ([]*xblock.Node, error) {
	o, err := loadOutline(ctx, s.db)
	if err != nil {
		return nil, err
	}
	var out []*xblock.Node
	for _, r := range o.children[""] {
		cp := *r.node
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateFields applies metadata, grading and publish changes to one block.
func (s *CourseStore) UpdateFields(ctx context.Context, id string, u remote.Update) error {
	id = strings.TrimSpace(id)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "store: begin")
	}
	defer func() { _ = tx.Rollback() }()

	o, err := loadOutline(ctx, tx)
	if err != nil {
		return err
	}
	row, ok := o.byID[id]
	if !ok {
		return remote.NotFound(id)
	}
	n := row.node
	now := s.now().UTC()
	edited := false

	for key, v := range u.Metadata {
		if err := applyMetadata(n, xblock.ClientFieldName(key), v); err != nil {
			return err
		}
		edited = true
	}

	if u.GraderType != nil {
		gt := strings.TrimSpace(*u.GraderType)
		if gt == "" || gt == remote.NotGraded {
			n.Format = nil
			f := false
			n.Graded = &f
		} else {
			if err := checkGraderType(o.root(id).node, gt); err != nil {
				return err
			}
			n.Format = &gt
			tr := true
			n.Graded = &tr
		}
		edited = true
	}

	if edited {
		tr := true
		ts := xblock.FormatDisplayDate(now)
		actor := s.actor
		n.HasChanges = &tr
		n.EditedOn = &ts
		n.EditedBy = &actor
	}

	touched := []*blockRow{row}
	switch u.Publish {
	case "":
	case remote.PublishMakePublic:
		touched = s.publishSubtree(o, row, now)
	case remote.PublishDiscardChanges:
		f := false
		n.HasChanges = &f
	default:
		return &InvalidUpdateError{Field: "publish", Reason: fmt.Sprintf("unknown action %q", u.Publish)}
	}

	for _, r := range touched {
		if err := writeRow(ctx, tx, r, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "store: commit")
	}
	s.log.Debug("block updated",
		zap.String("id", id),
		zap.Int("metadata_fields", len(u.Metadata)),
		zap.Bool("grader", u.GraderType != nil),
		zap.String("publish", u.Publish),
	)
	return nil
}

func (s *CourseStore) publishSubtree(o *outline, row *blockRow, now time.Time) []*blockRow {
	var out []*blockRow
	ts := xblock.FormatDisplayDate(now)
	actor := s.actor
	var walk func(r *blockRow)
	walk = func(r *blockRow) {
		tr, f := true, false
		r.node.Published = &tr
		r.node.HasChanges = &f
		r.node.PublishedOn = &ts
		r.node.PublishedBy = &actor
		out = append(out, r)
		for _, ch := range o.children[r.id] {
			walk(ch)
		}
	}
	walk(row)
	return out
}

func checkGraderType(root *xblock.Node, gt string) error {
	if root == nil {
		return nil
	}
	gs, err := root.Graders()
	if err != nil || len(gs) == 0 {
		return nil
	}
	for _, g := range gs {
		if g.Type == gt {
			return nil
		}
	}
	return &InvalidUpdateError{Field: "graderType", Reason: fmt.Sprintf("unknown grader type %q", gt)}
}

func applyMetadata(n *xblock.Node, field string, v any) error {
	switch field {
	case "display_name":
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return &InvalidUpdateError{Field: field, Reason: "expected a non-empty string"}
		}
		n.DisplayName = strings.TrimSpace(s)
	case "release_date", "due_date":
		val, err := normalizeDate(v)
		if err != nil {
			return &InvalidUpdateError{Field: field, Reason: err.Error()}
		}
		if field == "release_date" {
			n.ReleaseDate = val
		} else {
			n.DueDate = val
		}
	case "visible_to_staff_only":
		b, ok := v.(bool)
		if !ok {
			return &InvalidUpdateError{Field: field, Reason: "expected a boolean"}
		}
		n.VisibleToStaffOnly = &b
	default:
		if n.Metadata == nil {
			n.Metadata = map[string]any{}
		}
		if v == nil {
			delete(n.Metadata, field)
		} else {
			n.Metadata[field] = v
		}
	}
	return nil
}

// normalizeDate accepts RFC 3339 or Studio display dates; nil or "" clears.
func normalizeDate(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, errors.New("expected a date string or null")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		out := xblock.FormatDisplayDate(t)
		return &out, nil
	}
	t, err := xblock.ParseDisplayDate(s)
	if err != nil {
		return nil, errors.Errorf("unrecognized date %q", s)
	}
	out := xblock.FormatDisplayDate(t)
	return &out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeRow(ctx context.Context, ex execer, r *blockRow, now time.Time) error {
	cp := *r.node
	cp.ChildInfo = nil
	cp.AncestorInfo = nil
	if cp.ReleaseDateFrom != nil {
		// Inherited dates are recomputed on fetch.
		cp.ReleaseDate = nil
		cp.ReleaseDateFrom = nil
	}
	cp.ReleasedToStudents = nil
	cp.CurrentlyVisibleToStudents = nil
	raw, err := json.Marshal(&cp)
	if err != nil {
		return errors.Wrapf(err, "store: encode block %s", r.id)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO blocks(id, parent_id, position, category, display_name, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		r.id, r.parentID, r.position, cp.Category, cp.DisplayName, string(raw), now.UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "store: write block %s", r.id)
	}
	return nil
}

// Import stores a fetched tree, replacing blocks with the same ids. The
// nearest ancestor (if any) becomes the parent of the imported root.
func (s *CourseStore) Import(ctx context.Context, root *xblock.Node) error {
	if root == nil || strings.TrimSpace(root.ID) == "" {
		return errors.New("store: import needs a root with an id")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "store: begin")
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	parentID := ""
	anc := root.Ancestors()
	for i := len(anc) - 1; i >= 0; i-- {
		a := anc[i]
		p := ""
		if i+1 < len(anc) {
			p = anc[i+1].ID
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM blocks WHERE id = ?`, a.ID).Scan(&exists); err != nil {
			return errors.Wrapf(err, "store: look up ancestor %s", a.ID)
		}
		if exists > 0 {
			continue
		}
		if err := writeRow(ctx, tx, &blockRow{id: a.ID, parentID: p, node: a}, now); err != nil {
			return err
		}
	}
	if len(anc) > 0 {
		parentID = anc[0].ID
	}

	var walk func(n *xblock.Node, parent string, pos int) error
	walk = func(n *xblock.Node, parent string, pos int) error {
		if err := writeRow(ctx, tx, &blockRow{id: n.ID, parentID: parent, position: pos, node: n}, now); err != nil {
			return err
		}
		for i, ch := range n.Children() {
			if err := walk(ch, n.ID, i); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, parentID, 0); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "store: commit")
	}
	s.log.Info("imported tree", zap.String("root", root.ID))
	return nil
}
