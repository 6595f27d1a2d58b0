package tools

import (
	"encoding/json"
	"fmt"
)

func jsonResult(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(b), nil
}

func stringArg(input map[string]interface{}, key string) string {
	s, _ := input[key].(string)
	return s
}
