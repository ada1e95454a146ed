package domain

import (
	"bytes"
	"encoding/json"
)

// OptionalString is a tri-state patch field: absent (keep the stored value),
// explicit clear (JSON null or ""), or an explicit value.
type OptionalString struct {
	Set   bool
	Value string
}

// Keep leaves the stored value untouched.
func Keep() OptionalString { return OptionalString{} }

// Clear resets the stored value to empty.
func Clear() OptionalString { return OptionalString{Set: true} }

// Value replaces the stored value with v.
func Value(v string) OptionalString { return OptionalString{Set: true, Value: v} }

// UnmarshalJSON is only invoked when the key is present in the payload.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Apply returns the field value after the patch.
func (o OptionalString) Apply(current string) string {
	if !o.Set {
		return current
	}
	return o.Value
}
