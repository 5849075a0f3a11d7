package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// parseArgs decodes the structured payload of a cmd invocation into a
// generic value (map, slice or scalar). Empty input yields nil.
func parseArgs(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", errArgs, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after value", errArgs)
	}
	return v, nil
}
