package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Unwrap returns the value under "data" when raw is a {"data": ...} envelope,
// otherwise raw itself.
func Unwrap(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return raw
	}
	data, ok := env["data"]
	if !ok || isNull(data) {
		return raw
	}
	return data
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || string(t) == "null"
}

// idString accepts a JSON string or number and returns it as text.
func idString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// Float forms at or above 2^53 may already have been rounded.
const maxExactFloatID = 1 << 53

// positiveID accepts "42" or 42 and requires a positive finite integer.
// Integral float forms such as "42.0" are accepted below 2^53.
func positiveID(raw json.RawMessage) (int64, bool) {
	s, ok := idString(raw)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f <= 0 || f != math.Trunc(f) || f >= maxExactFloatID {
		return 0, false
	}
	return int64(f), true
}
