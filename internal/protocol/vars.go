package protocol

import (
	"fmt"
	"regexp"
	"sort"
)

// {{name}} or {{name:default}}
var varPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)(?::([^}]*))?\}\}`)

// Variables resolves {{name}} placeholders in definition values
type Variables struct {
	values map[string]string
}

// NewVariables layers overrides on top of definition defaults. Empty override
// values do not replace a default.
func NewVariables(defaults, overrides map[string]string) *Variables {
	v := &Variables{values: make(map[string]string, len(defaults)+len(overrides))}
	for name, value := range defaults {
		v.values[name] = value
	}
	for name, value := range overrides {
		if value != "" {
			v.values[name] = value
		}
	}
	return v
}

// Get returns a variable value
func (v *Variables) Get(name string) (string, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Names returns the defined variable names, sorted
func (v *Variables) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Substitute replaces every placeholder in input. A placeholder with no value
// and no default is an error.
func (v *Variables) Substitute(input string) (string, error) {
	var missing string

	result := varPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := varPattern.FindStringSubmatch(match)
		if value, ok := v.values[groups[1]]; ok {
			return value
		}
		if groups[2] != "" {
			return groups[2]
		}
		if missing == "" {
			missing = groups[1]
		}
		return match
	})

	if missing != "" {
		return "", fmt.Errorf("undefined variable '%s'", missing)
	}
	return result, nil
}
