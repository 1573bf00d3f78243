package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"studio-cli/internal/server"
	"studio-cli/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta map[string]any  `json:"meta"`
}

type nodeOut struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	ReleaseDate string `json:"release_date"`
	DueDate     string `json:"due_date"`
	Format      string `json:"format"`
	Published   bool   `json:"published"`
	HasChanges  bool   `json:"has_changes"`
	ChildInfo   *struct {
		Children []nodeOut `json:"children"`
	} `json:"child_info"`
}

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// setupCLI isolates config and the local store in temp dirs.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STUDIO_CONFIG_DIR", filepath.Join(dir, "config"))
	for _, k := range []string{"STUDIO_URL", "STUDIO_DB", "STUDIO_COURSE", "STUDIO_TIMEOUT", "STUDIO_LOGFILE"} {
		t.Setenv(k, "")
	}
	chdir(t, dir)
	return filepath.Join(dir, "course.sqlite")
}

func mustRun(t *testing.T, args ...string) envelope {
	t.Helper()
	out, errOut, err := runCLI(t, args)
	require.NoError(t, err, "studio %s\nstderr:\n%s", strings.Join(args, " "), errOut)
	var env envelope
	require.NoError(t, json.Unmarshal(out, &env), "stdout:\n%s", out)
	return env
}

func decodeNode(t *testing.T, raw json.RawMessage) nodeOut {
	t.Helper()
	var n nodeOut
	require.NoError(t, json.Unmarshal(raw, &n), string(raw))
	return n
}

func seedCourse(t *testing.T, db string) nodeOut {
	t.Helper()
	env := mustRun(t, "--db", db, "seed", "--use")
	var seeded struct {
		ID      string `json:"id"`
		Current bool   `json:"current"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &seeded))
	require.True(t, seeded.Current)

	root := decodeNode(t, mustRun(t, "--db", db, "outline").Data)
	require.Equal(t, seeded.ID, root.ID)
	return root
}

func TestSeedThenOutline(t *testing.T) {
	db := setupCLI(t)
	root := seedCourse(t, db)

	assert.Equal(t, "course", root.Category)
	assert.Equal(t, "Demo Course", root.DisplayName)
	require.NotNil(t, root.ChildInfo)
	require.Len(t, root.ChildInfo.Children, 3)
	assert.Equal(t, "Introduction", root.ChildInfo.Children[0].DisplayName)
	assert.Equal(t, "chapter", root.ChildInfo.Children[0].Category)

	out, _, err := runCLI(t, []string{"--db", db, "--format", "text", "outline", "--depth", "1"})
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "Course: Demo Course")
	assert.Contains(t, text, "  Section: Introduction")
	assert.NotContains(t, text, "Subsection:", "depth 1 stops at sections")
}

func TestShowAndDirectLookup(t *testing.T) {
	db := setupCLI(t)
	root := seedCourse(t, db)
	sec := root.ChildInfo.Children[1]

	n := decodeNode(t, mustRun(t, "--db", db, "show", sec.ID).Data)
	assert.Equal(t, sec.ID, n.ID)
	assert.Equal(t, "Week 1: Foundations", n.DisplayName)

	out, _, err := runCLI(t, []string{"--db", db, "--format", "edn", "show", sec.ID})
	require.NoError(t, err)
	assert.Contains(t, string(out), ":display-name \"Week 1: Foundations\"")
}

func TestRename(t *testing.T) {
	db := setupCLI(t)
	root := seedCourse(t, db)
	sec := root.ChildInfo.Children[0]

	env := mustRun(t, "--db", db, "rename", sec.ID, "  Week 0: Orientation  ")
	assert.Equal(t, true, env.Meta["changed"])
	assert.Equal(t, "Week 0: Orientation", decodeNode(t, env.Data).DisplayName)

	n := decodeNode(t, mustRun(t, "--db", db, "show", sec.ID).Data)
	assert.Equal(t, "Week 0: Orientation", n.DisplayName)
	assert.True(t, n.HasChanges)

	env = mustRun(t, "--db", db, "rename", sec.ID, "   ")
	assert.Equal(t, false, env.Meta["changed"], "blank names are not sent")
	env = mustRun(t, "--db", db, "rename", sec.ID, "Week 0: Orientation")
	assert.Equal(t, false, env.Meta["changed"], "unchanged names are not sent")
}

func TestRename_UnknownBlock(t *testing.T) {
	db := setupCLI(t)
	seedCourse(t, db)

	_, _, err := runCLI(t, []string{"--db", db, "rename", "block-v1:Demo+CS101+2026+type@chapter+block@nope", "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSchedule(t *testing.T) {
	db := setupCLI(t)
	root := seedCourse(t, db)
	sub := root.ChildInfo.Children[1].ChildInfo.Children[1]

	env := mustRun(t, "--db", db, "schedule", sub.ID,
		"--release", "04/01/26 09:30",
		"--due", "04/08/2026 23:59",
		"--grading", "homework",
	)
	n := decodeNode(t, env.Data)
	assert.Equal(t, "Apr 01, 2026 at 09:30 UTC", n.ReleaseDate)
	assert.Equal(t, "Apr 08, 2026 at 23:59 UTC", n.DueDate)
	assert.Equal(t, "Homework", n.Format)

	// Flags left out keep their values; "none" clears.
	n = decodeNode(t, mustRun(t, "--db", db, "schedule", sub.ID, "--due", "none").Data)
	assert.Equal(t, "Apr 01, 2026 at 09:30 UTC", n.ReleaseDate)
	assert.Empty(t, n.DueDate)
	assert.Equal(t, "Homework", n.Format)

	n = decodeNode(t, mustRun(t, "--db", db, "schedule", sub.ID, "--grading", "notgraded").Data)
	assert.Empty(t, n.Format)
}

func TestSchedule_Rejects(t *testing.T) {
	db := setupCLI(t)
	root := seedCourse(t, db)
	sub := root.ChildInfo.Children[0].ChildInfo.Children[0]
	unit := sub.ChildInfo.Children[0]

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"bad date", []string{"schedule", sub.ID, "--release", "31/31/26"}, "invalid --release"},
		{"too many parts", []string{"schedule", sub.ID, "--due", "04/01/26 09:30 PM"}, "invalid --due"},
		{"unknown grader", []string{"schedule", sub.ID, "--grading", "Quiz"}, "invalid --grading"},
		{"unit", []string{"schedule", unit.ID}, "applies to sections and subsections"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"--db", db}, tc.args...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPublish(t *testing.T) {
	db := setupCLI(t)
	root := seedCourse(t, db)
	sec := root.ChildInfo.Children[2]

	n := decodeNode(t, mustRun(t, "--db", db, "publish", sec.ID).Data)
	assert.True(t, n.Published)
	assert.False(t, n.HasChanges)
	require.NotNil(t, n.ChildInfo)
	for _, ch := range n.ChildInfo.Children {
		assert.True(t, ch.Published, ch.ID)
	}

	mustRun(t, "--db", db, "rename", sec.ID, "Week 2: Labs")
	out, _, err := runCLI(t, []string{"--db", db, "--format", "text", "publish", "--discard", sec.ID})
	require.NoError(t, err)
	assert.Equal(t, "Week 2: Labs: published\n", string(out))
}

func TestConfigSetShow(t *testing.T) {
	setupCLI(t)

	mustRun(t, "config", "set", "timeout", "5s")
	mustRun(t, "config", "set", "course", "block-v1:Demo+CS101+2026+type@course+block@course")

	env := mustRun(t, "config", "show")
	var shown map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &shown))
	assert.Equal(t, "5s", shown["timeout"])
	assert.Equal(t, "block-v1:Demo+CS101+2026+type@course+block@course", shown["course"])
	assert.True(t, strings.HasSuffix(env.Meta["path"].(string), "config.json"))

	// Flags win over the file.
	env = mustRun(t, "--timeout", "2s", "config", "show")
	require.NoError(t, json.Unmarshal(env.Data, &shown))
	assert.Equal(t, "2s", shown["timeout"])

	_, _, err := runCLI(t, []string{"config", "set", "glyphs", "emoji"})
	require.Error(t, err)
}

func TestNoCourse(t *testing.T) {
	db := setupCLI(t)

	_, _, err := runCLI(t, []string{"--db", db, "outline"})
	require.Error(t, err)
	assert.ErrorAs(t, err, &noCourseError{})
}

func TestDocs(t *testing.T) {
	setupCLI(t)

	env := mustRun(t, "docs")
	var list struct {
		Topics []string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Contains(t, list.Topics, "schedule")

	out, _, err := runCLI(t, []string{"docs", "editing", "--raw"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "# Editing names"))

	_, _, err = runCLI(t, []string{"docs", "nope"})
	require.Error(t, err)
}

func TestPull(t *testing.T) {
	src := setupCLI(t)
	root := seedCourse(t, src)

	cs, err := store.Open(context.Background(), src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	srv, err := server.New(server.Options{Store: cs, DisableReqLogs: true})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dest := filepath.Join(t.TempDir(), "copy.sqlite")
	env := mustRun(t, "--url", ts.URL, "--db", dest, "pull", root.ID)
	var pulled struct {
		ID     string `json:"id"`
		Blocks int    `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pulled))
	assert.Equal(t, root.ID, pulled.ID)
	assert.Equal(t, 14, pulled.Blocks)

	copied := decodeNode(t, mustRun(t, "--db", dest, "outline").Data)
	assert.Equal(t, root.DisplayName, copied.DisplayName)
	require.NotNil(t, copied.ChildInfo)
	assert.Len(t, copied.ChildInfo.Children, 3)

	_, _, err = runCLI(t, []string{"--db", dest, "pull", root.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --url")
}
