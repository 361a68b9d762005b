package export

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxSheetNameLength = 31
	fallbackSheetName  = "Categoria"
)

var sheetNameReplacer = strings.NewReplacer(
	"/", "",
	":", "",
	"\\", "",
	"?", "",
	"*", "",
	"[", "",
	"]", "",
	" ", "_",
)

// SanitizeSheetName turns a category name into a valid worksheet name.
func SanitizeSheetName(name string) string {
	s := sheetNameReplacer.Replace(strings.TrimSpace(name))
	s = strings.Trim(s, "'")
	s = strings.TrimRight(truncateRunes(s, maxSheetNameLength), "'")
	if s == "" {
		return fallbackSheetName
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sheetNamer hands out unique sanitized names. Excel compares sheet names
// case-insensitively.
type sheetNamer struct {
	used map[string]struct{}
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]struct{})}
}

func (n *sheetNamer) next(category string) string {
	base := SanitizeSheetName(category)
	name := base
	for i := 2; n.taken(name); i++ {
		suffix := fmt.Sprintf("_%d", i)
		stem := strings.TrimRight(truncateRunes(base, maxSheetNameLength-utf8.RuneCountInString(suffix)), "'")
		name = stem + suffix
	}
	n.used[strings.ToLower(name)] = struct{}{}
	return name
}

func (n *sheetNamer) taken(name string) bool {
	_, ok := n.used[strings.ToLower(name)]
	return ok
}
