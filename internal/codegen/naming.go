package codegen

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ComponentName converts a free-form name ("todo list", "todo-list") to the
// PascalCase identifier used for component files ("TodoList").
func ComponentName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	// Casers carry state and are not shared across goroutines.
	caser := cases.Title(language.English, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

func sourceExt(lang string, jsx bool) string {
	switch {
	case lang == "javascript" && jsx:
		return ".jsx"
	case lang == "javascript":
		return ".js"
	case jsx:
		return ".tsx"
	default:
		return ".ts"
	}
}

// routeSlug turns "/api/todos/{id}/tags" into "todos-id-tags".
func routeSlug(path string) string {
	path = strings.TrimPrefix(path, "/api")
	words := strings.FieldsFunc(path, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "root"
	}
	return strings.ToLower(strings.Join(words, "-"))
}
