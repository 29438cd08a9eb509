package identify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// jsonObjectPattern spans from the first '{' to the last '}' across newlines.
var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseResponse extracts a PlantInfo from the model's text answer and checks
// that every required field is present.
func ParseResponse(text string) (core.PlantInfo, error) {
	if strings.TrimSpace(text) == "" {
		return core.PlantInfo{}, core.ErrUpstream(core.CodeEmptyResponse, core.MsgEmptyResponse)
	}

	candidate := jsonObjectPattern.FindString(text)
	if candidate == "" {
		return core.PlantInfo{}, core.ErrUpstream(core.CodeNoJSON, core.MsgUnprocessable).
			WithCause(errors.New(core.MsgNoJSON))
	}

	info, err := decodePlant(candidate)
	if err != nil {
		return core.PlantInfo{}, core.ErrUpstream(core.CodeMalformedJSON, core.MsgUnprocessable).
			WithCause(err)
	}

	if !info.Identified() {
		return core.PlantInfo{}, core.ErrUpstream(core.CodeUnidentified, core.MsgUnidentified)
	}

	if missing := info.MissingFields(); len(missing) > 0 {
		return core.PlantInfo{}, core.ErrUpstream(core.CodeIncomplete, core.MsgIncomplete).
			WithDetail("missing", missing)
	}

	return info.Normalize(), nil
}

// decodePlant decodes the greedy candidate, falling back to the first
// complete JSON value when the candidate holds more than one object or
// trailing text with a closing brace.
func decodePlant(candidate string) (core.PlantInfo, error) {
	var info core.PlantInfo
	err := json.Unmarshal([]byte(candidate), &info)
	if err == nil {
		return info, nil
	}

	var first core.PlantInfo
	dec := json.NewDecoder(strings.NewReader(candidate))
	if decErr := dec.Decode(&first); decErr != nil {
		return core.PlantInfo{}, fmt.Errorf("decoding plant JSON: %w", err)
	}
	return first, nil
}
