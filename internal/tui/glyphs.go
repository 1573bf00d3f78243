package tui

import (
	"os"
	"strings"
	"sync"
)

// Terminal apps can't change the user's font, so affordances (twisties,
// badges, separators) come in a Unicode and an ASCII set.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference picks the glyph set from the config value, falling
// back to STUDIO_TUI_GLYPHS.
func applyGlyphPreference(pref string) {
	v := strings.ToLower(strings.TrimSpace(pref))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("STUDIO_TUI_GLYPHS")))
	}
	switch v {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	default:
		// Unknown value: ignore.
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func glyphTwistyCollapsed() string {
	if glyphs() == glyphSetASCII {
		return ">"
	}
	return "▸"
}

func glyphTwistyExpanded() string {
	if glyphs() == glyphSetASCII {
		return "v"
	}
	return "▾"
}

func glyphChanged() string {
	if glyphs() == glyphSetASCII {
		return "*"
	}
	return "●"
}

func glyphStaffOnly() string {
	if glyphs() == glyphSetASCII {
		return "[staff]"
	}
	return "⊘"
}

func glyphSep() string {
	if glyphs() == glyphSetASCII {
		return " > "
	}
	return " › "
}
