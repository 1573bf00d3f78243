package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studio-cli/internal/xblock"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CourseKey identifies a course run ("Org+Number+Run").
type CourseKey struct {
	Org    string
	Number string
	Run    string
}

func (k CourseKey) String() string {
	return k.Org + "+" + k.Number + "+" + k.Run
}

// ParseCourseKey accepts "Org+Number+Run" or "Org/Number/Run".
func ParseCourseKey(s string) (CourseKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "course-v1:")
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == '/' })
	if len(parts) != 3 {
		return CourseKey{}, errors.Errorf("invalid course key %q (want Org+Number+Run)", s)
	}
	return CourseKey{Org: parts[0], Number: parts[1], Run: parts[2]}, nil
}

// BlockID builds a usage key for a block of this course.
func (k CourseKey) BlockID(category, name string) string {
	return fmt.Sprintf("block-v1:%s+type@%s+block@%s", k, category, name)
}

func (k CourseKey) newBlockID(category string) string {
	return k.BlockID(category, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

var defaultGraders = []xblock.Grader{
	{ID: 0, Type: "Homework", MinCount: 12, DropCount: 2, ShortLabel: "HW", Weight: 0.15},
	{ID: 1, Type: "Lab", MinCount: 12, DropCount: 2, Weight: 0.15},
	{ID: 2, Type: "Midterm Exam", MinCount: 1, ShortLabel: "Midterm", Weight: 0.3},
	{ID: 3, Type: "Final Exam", MinCount: 1, ShortLabel: "Final", Weight: 0.4},
}

// Seed creates a small demo course and returns its root block id.
func (s *CourseStore) Seed(ctx context.Context, key CourseKey, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		title = "Demo Course"
	}
	rootID := key.BlockID(xblock.CategoryCourse, "course")
	if _, err := s.Fetch(ctx, rootID); err == nil {
		return "", errors.Errorf("course %s already exists", key)
	}

	f := false
	course := &xblock.Node{
		ID:          rootID,
		DisplayName: title,
		Category:    xblock.CategoryCourse,
		HasChanges:  &f,
		ChildInfo:   &xblock.ChildInfo{},
	}
	if err := course.SetGraders(defaultGraders); err != nil {
		return "", err
	}
	start := xblock.FormatDisplayDate(s.now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour))
	course.ReleaseDate = &start

	sections := []struct {
		name        string
		subsections []string
	}{
		{"Introduction", []string{"Welcome", "Course Logistics"}},
		{"Week 1: Foundations", []string{"Lecture Sequence", "Homework 1"}},
		{"Week 2: Practice", []string{"Lab 1"}},
	}
	for _, sec := range sections {
		ch := &xblock.Node{
			ID:          key.newBlockID(xblock.CategoryChapter),
			DisplayName: sec.name,
			Category:    xblock.CategoryChapter,
			HasChanges:  &f,
			ChildInfo:   &xblock.ChildInfo{},
		}
		for _, sub := range sec.subsections {
			seq := &xblock.Node{
				ID:          key.newBlockID(xblock.CategorySequential),
				DisplayName: sub,
				Category:    xblock.CategorySequential,
				HasChanges:  &f,
				ChildInfo:   &xblock.ChildInfo{},
			}
			unit := &xblock.Node{
				ID:          key.newBlockID(xblock.CategoryVertical),
				DisplayName: "Unit",
				Category:    xblock.CategoryVertical,
				HasChanges:  &f,
			}
			seq.ChildInfo.Children = append(seq.ChildInfo.Children, unit)
			ch.ChildInfo.Children = append(ch.ChildInfo.Children, seq)
		}
		course.ChildInfo.Children = append(course.ChildInfo.Children, ch)
	}

	if err := s.Import(ctx, course); err != nil {
		return "", err
	}
	return rootID, nil
}
