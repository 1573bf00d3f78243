package main

import (
	"os"
	"strings"

	"studio-cli/internal/cli"
)

func isBlockID(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "block-v1:") {
		return false
	}
	return strings.Contains(s, "+type@") && strings.Contains(s, "+block@")
}

func rewriteDirectBlockLookupArgs(argv []string) []string {
	// `studio <block-id>` works like `studio show <block-id>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so argv is
	// rewritten before parsing. Persistent flags may come first
	// (`studio --url ... <block-id>`), so look for the first positional token.
	if len(argv) < 2 {
		return argv
	}

	// Unknown flags are skipped without consuming a value so a block id is
	// never swallowed.
	valueFlags := map[string]bool{
		"--url":      true,
		"--db":       true,
		"--course":   true,
		"--format":   true,
		"--timeout":  true,
		"--log-file": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	insertShow := func(i int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "show")
		out = append(out, argv[i:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isBlockID(argv[i+1]) {
				return insertShow(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		if isBlockID(a) {
			return insertShow(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectBlockLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
