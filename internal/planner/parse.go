package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoActions is returned when model output contains no action list.
var ErrNoActions = errors.New("no actions found in model output")

// ErrMalformedPlan is returned when an action list is present but its steps
// do not have the expected shape.
var ErrMalformedPlan = errors.New("malformed action list")

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseActions extracts the {"actions": [...]} document from model output.
// The JSON may be the whole text, inside a fenced code block, or embedded
// in prose. A bare array of steps is accepted too.
//
// ErrNoActions means the text holds no action list at all. An action list
// that is present but does not decode into steps is ErrMalformedPlan.
func ParseActions(text string) ([]Step, error) {
	candidates := []string{strings.TrimSpace(text)}
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}

	var malformed error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		steps, err := decodeActions(c)
		if err == nil {
			return steps, nil
		}
		if errors.Is(err, ErrMalformedPlan) && malformed == nil {
			malformed = err
		}
	}
	if malformed != nil {
		return nil, malformed
	}
	return nil, ErrNoActions
}

func decodeActions(s string) ([]Step, error) {
	raw := []byte(s)
	if !json.Valid(raw) {
		return nil, ErrNoActions
	}

	if strings.HasPrefix(s, "[") {
		return decodeSteps(raw)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrNoActions
	}
	actions, ok := doc["actions"]
	if !ok {
		return nil, ErrNoActions
	}
	return decodeSteps(actions)
}

func decodeSteps(raw json.RawMessage) ([]Step, error) {
	var steps []Step
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if len(steps) == 0 {
		return nil, ErrNoActions
	}
	return steps, nil
}
