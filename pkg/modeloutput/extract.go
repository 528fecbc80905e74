// Package modeloutput pulls structured values out of free-text model replies.
package modeloutput

import (
	"encoding/json"
	"regexp"
)

// jsonBlock matches the outermost object or array, whichever opens first.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}|\[.*\]`)

// ExtractJSON returns the first JSON object or array embedded in raw, decoded
// into generic Go values (map[string]any, []any). It returns nil when nothing
// matches or the match does not parse; it never panics or errors.
func ExtractJSON(raw string) any {
	match := jsonBlock.FindString(raw)
	if match == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return nil
	}
	return v
}

// Decode re-decodes an extracted value into target. It reports false when
// raw held no JSON or the value does not fit target's shape.
func Decode(raw string, target any) bool {
	v := ExtractJSON(raw)
	if v == nil {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}
