package provision

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

//go:embed templates/*.json
var templates embed.FS

var placeholder = regexp.MustCompile(`\$\{([A-Z][A-Z0-9_]*)\}`)

// Render substitutes ${NAME} placeholders in tmpl with vars. A placeholder
// without a value is an error.
func Render(tmpl string, vars map[string]string) (string, error) {
	missing := map[string]struct{}{}
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing[name] = struct{}{}
			return m
		}
		return v
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unresolved template placeholders: %s", strings.Join(names, ", "))
	}
	return out, nil
}

func renderTemplate(name string, vars map[string]string) (string, error) {
	b, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}
	return Render(string(b), vars)
}
