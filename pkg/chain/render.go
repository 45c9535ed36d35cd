package chain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// RenderUserPrompt fills the spec's user template. Placeholders resolve
// against the caller's inputs first, then against the spec itself
// (rubric, runtime, versions); a placeholder with no value anywhere is an
// error rather than an empty substitution.
func (s *Spec) RenderUserPrompt(inputs map[string]any) (string, error) {
	specMap := s.mapping()

	var renderErr error
	out := placeholderRe.ReplaceAllStringFunc(s.Prompts.UserTemplate, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := lookupDotPath(inputs, key)
		if !ok {
			value, ok = lookupDotPath(specMap, key)
		}
		if !ok {
			if renderErr == nil {
				renderErr = fmt.Errorf("missing placeholder value: %s", key)
			}
			return match
		}
		return stringify(value)
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}

func lookupDotPath(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any, []any, []string:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}
