package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"studio-cli/internal/remote"
	"studio-cli/internal/xblock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *CourseStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "course.sqlite"),
		WithActor("author@example.com"),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTestCourse(t *testing.T, s *CourseStore) *xblock.Node {
	t.Helper()
	ctx := context.Background()
	rootID, err := s.Seed(ctx, CourseKey{Org: "Demo", Number: "CS101", Run: "2026"}, "Intro to CS")
	require.NoError(t, err)
	root, err := s.Fetch(ctx, rootID)
	require.NoError(t, err)
	return root
}

func TestSeedAndFetch(t *testing.T) {
	s := openTestStore(t)
	root := seedTestCourse(t, s)

	assert.Equal(t, "block-v1:Demo+CS101+2026+type@course+block@course", root.ID)
	assert.True(t, root.IsCourse())
	require.Len(t, root.Children(), 3)
	assert.Equal(t, xblock.CategoryChapter, root.ChildInfo.Category)

	intro := root.Children()[0]
	assert.Equal(t, "Introduction", intro.DisplayName)
	require.Len(t, intro.Children(), 2)
	assert.Equal(t, "Welcome", intro.Children()[0].DisplayName)

	gs, err := root.Graders()
	require.NoError(t, err)
	assert.Len(t, gs, 4)

	// Release date is inherited from the course.
	require.NotNil(t, intro.ReleaseDate)
	assert.Equal(t, *root.ReleaseDate, *intro.ReleaseDate)
	require.NotNil(t, intro.ReleaseDateFrom)
	assert.Equal(t, "Intro to CS", *intro.ReleaseDateFrom)
	assert.False(t, xblock.BoolValue(intro.ReleasedToStudents))

	roots, err := s.Roots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)

	_, err = s.Seed(context.Background(), CourseKey{Org: "Demo", Number: "CS101", Run: "2026"}, "")
	assert.Error(t, err, "seeding twice must fail")
}

func TestFetchSubtreeHasAncestors(t *testing.T) {
	s := openTestStore(t)
	root := seedTestCourse(t, s)
	seqID := root.Children()[1].Children()[0].ID

	seq, err := s.Fetch(context.Background(), seqID)
	require.NoError(t, err)
	anc := seq.Ancestors()
	require.Len(t, anc, 2)
	assert.Equal(t, "Week 1: Foundations", anc[0].DisplayName)
	assert.Equal(t, root.ID, anc[1].ID)
	assert.Nil(t, anc[0].ChildInfo)
	require.Len(t, seq.Children(), 1)
	assert.True(t, seq.Children()[0].IsVertical())

	_, err = s.Fetch(context.Background(), "nope")
	assert.True(t, errors.Is(err, remote.ErrNotFound))
}

func TestUpdateFields_DisplayName(t *testing.T) {
	s := openTestStore(t)
	root := seedTestCourse(t, s)
	id := root.Children()[0].ID
	ctx := context.Background()

	require.NoError(t, s.UpdateFields(ctx, id, remote.FieldUpdate("display_name", "  Getting Started ")))
	n, err := s.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Getting Started", n.DisplayName)
	assert.True(t, xblock.BoolValue(n.HasChanges))
	assert.Equal(t, "author@example.com", xblock.StringValue(n.EditedBy))
	assert.Equal(t, xblock.FormatDisplayDate(testNow), xblock.StringValue(n.EditedOn))

	err = s.UpdateFields(ctx, id, remote.FieldUpdate("display_name", "   "))
	var iue *InvalidUpdateError
	require.True(t, errors.As(err, &iue), "got %v", err)
	assert.Equal(t, "display_name", iue.Field)

	err = s.UpdateFields(ctx, "missing", remote.FieldUpdate("display_name", "x"))
	assert.True(t, errors.Is(err, remote.ErrNotFound))
}

func TestUpdateFields_ScheduleAndGrading(t *testing.T) {
	s := openTestStore(t)
	root := seedTestCourse(t, s)
	seq := root.Children()[1].Children()[1]
	ctx := context.Background()

	hw := "Homework"
	u := remote.Update{
		Metadata: xblock.PreprocessFieldNames(map[string]any{
			"release_date": "2026-03-01T09:30:00Z",
			"due_date":     "2026-03-08T23:59:00Z",
		}),
		GraderType: &hw,
	}
	require.NoError(t, s.UpdateFields(ctx, seq.ID, u))

	n, err := s.Fetch(ctx, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mar 01, 2026 at 09:30 UTC", xblock.StringValue(n.ReleaseDate))
	assert.Nil(t, n.ReleaseDateFrom)
	assert.Equal(t, "Mar 08, 2026 at 23:59 UTC", xblock.StringValue(n.DueDate))
	assert.Equal(t, "Homework", xblock.StringValue(n.Format))
	assert.True(t, xblock.BoolValue(n.Graded))
	assert.True(t, xblock.BoolValue(n.ReleasedToStudents))
	assert.False(t, xblock.BoolValue(n.CurrentlyVisibleToStudents), "unpublished blocks are not visible")

	// Units below inherit the subsection's release date.
	unit := n.Children()[0]
	assert.Equal(t, "Mar 01, 2026 at 09:30 UTC", xblock.StringValue(unit.ReleaseDate))
	assert.Equal(t, seq.DisplayName, xblock.StringValue(unit.ReleaseDateFrom))

	notGraded := remote.NotGraded
	require.NoError(t, s.UpdateFields(ctx, seq.ID, remote.Update{
		Metadata:   map[string]any{"start": nil, "due": nil},
		GraderType: &notGraded,
	}))
	n, err = s.Fetch(ctx, seq.ID)
	require.NoError(t, err)
	assert.Nil(t, n.DueDate)
	assert.Nil(t, n.Format)
	assert.False(t, xblock.BoolValue(n.Graded))
	assert.Equal(t, root.Children()[1].ReleaseDate, n.ReleaseDate, "cleared release date falls back to the inherited one")

	bogus := "Pop Quiz"
	err = s.UpdateFields(ctx, seq.ID, remote.Update{GraderType: &bogus})
	var iue *InvalidUpdateError
	require.True(t, errors.As(err, &iue))

	err = s.UpdateFields(ctx, seq.ID, remote.FieldUpdate("due_date", "someday"))
	require.True(t, errors.As(err, &iue))
}

func TestUpdateFields_PublishSubtree(t *testing.T) {
	s := openTestStore(t)
	root := seedTestCourse(t, s)
	ch := root.Children()[0]
	ctx := context.Background()

	require.NoError(t, s.UpdateFields(ctx, ch.Children()[0].ID, remote.FieldUpdate("display_name", "Hello")))
	require.NoError(t, s.UpdateFields(ctx, ch.ID, remote.Update{Publish: remote.PublishMakePublic}))

	n, err := s.Fetch(ctx, ch.ID)
	require.NoError(t, err)
	n.Walk(func(b *xblock.Node, _ int) bool {
		assert.True(t, xblock.BoolValue(b.Published), b.ID)
		assert.False(t, xblock.BoolValue(b.HasChanges), b.ID)
		assert.Equal(t, "author@example.com", xblock.StringValue(b.PublishedBy))
		return true
	})

	err = s.UpdateFields(ctx, ch.ID, remote.Update{Publish: "explode"})
	assert.Error(t, err)
}

func TestImport_RoundTrip(t *testing.T) {
	src := openTestStore(t)
	root := seedTestCourse(t, src)
	seqID := root.Children()[1].Children()[0].ID
	seq, err := src.Fetch(context.Background(), seqID)
	require.NoError(t, err)

	dst := openTestStore(t)
	require.NoError(t, dst.Import(context.Background(), seq))

	got, err := dst.Fetch(context.Background(), seqID)
	require.NoError(t, err)
	assert.Equal(t, seq.DisplayName, got.DisplayName)
	require.Len(t, got.Ancestors(), 2)
	assert.Equal(t, root.ID, got.Ancestors()[1].ID)
	assert.Len(t, got.Children(), 1)
	// The inherited date came from the (imported) course root.
	assert.Equal(t, xblock.StringValue(seq.ReleaseDate), xblock.StringValue(got.ReleaseDate))

	assert.Error(t, dst.Import(context.Background(), &xblock.Node{}))
}

func TestParseCourseKey(t *testing.T) {
	k, err := ParseCourseKey("course-v1:Demo+CS101+2026")
	require.NoError(t, err)
	assert.Equal(t, CourseKey{Org: "Demo", Number: "CS101", Run: "2026"}, k)
	k, err = ParseCourseKey("MITx/6.002x/2012_Fall")
	require.NoError(t, err)
	assert.Equal(t, "MITx+6.002x+2012_Fall", k.String())
	_, err = ParseCourseKey("nope")
	assert.Error(t, err)
}
