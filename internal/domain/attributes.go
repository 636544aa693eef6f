package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// extraFields returns every top-level JSON field not listed in known.
// Returns nil when there are no extra fields.
func extraFields(data []byte, known ...string) (map[string]any, error) {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// decodeIdentifier accepts a JSON string or number as an identifier.
// Providers built on dataframes sometimes emit numeric ids.
func decodeIdentifier(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", fmt.Errorf("identifier must be a string or number: %s", strings.TrimSpace(string(raw)))
	}
	return num.String(), nil
}
