package journal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/statetree/internal/ir"
)

// marshalCanonical converts a native or ir value to canonical JSON TEXT.
func marshalCanonical(what string, v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// marshalErrors converts validation errors to a JSON array of messages.
// Uses json.Encoder with HTML escaping disabled to match canonical output.
func marshalErrors(errs []error) (string, error) {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msgs); err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// unmarshalErrors is the inverse of marshalErrors.
func unmarshalErrors(s string) ([]string, error) {
	var msgs []string
	if err := json.Unmarshal([]byte(s), &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if msgs == nil {
		msgs = []string{}
	}
	return msgs, nil
}
