package module

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DecodeValue turns an incoming payload into a parameter value. JSON
// scalars are used as is; anything else is read as a bool, a number or a
// plain string, in that order.
func DecodeValue(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		switch x := v.(type) {
		case bool, float64, string:
			return x
		case map[string]any:
			if inner, ok := x["value"]; ok {
				return inner
			}
		}
	}
	return parseScalar(string(payload))
}

func parseScalar(s string) any {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true", "on":
		return true
	case "false", "off":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
