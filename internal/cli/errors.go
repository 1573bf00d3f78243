package cli

import (
	"fmt"
	"strings"
)

type noCourseError struct{}

func (noCourseError) Error() string {
	return "no course selected: pass a block id, set --course, or run `studio seed --use`"
}

type ambiguousCourseError struct{ count int }

func (e ambiguousCourseError) Error() string {
	return fmt.Sprintf("%d courses in the local store: pass a block id or set --course", e.count)
}

type notSchedulableError struct {
	id       string
	category string
}

func (e notSchedulableError) Error() string {
	return fmt.Sprintf("%s is a %s: schedule applies to sections and subsections", e.id, e.category)
}

type invalidFlagError struct {
	flag   string
	reason string
}

func (e invalidFlagError) Error() string {
	return fmt.Sprintf("invalid --%s: %s", e.flag, e.reason)
}

func errInvalidFlag(flag, format string, args ...any) error {
	return invalidFlagError{flag: flag, reason: strings.TrimSpace(fmt.Sprintf(format, args...))}
}
