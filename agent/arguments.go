package agent

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
)

// inputKey wraps arguments that are not a keyed map.
const inputKey = "input"

// maxExactInt is the largest integer magnitude a float64 holds exactly.
const maxExactInt = 1 << 53

// NormalizeArguments turns whatever a model sent as tool arguments into a
// keyed map.
//
//	string (JSON object)      -> the decoded object
//	string (other JSON value) -> {"input": decoded}
//	string (not JSON)         -> {"input": raw}
//	nil                       -> {}
//	map                       -> the map itself
//	anything else             -> {"input": value}
//
// json.RawMessage and []byte are handled like strings. Decoded numbers are
// float64, except integers beyond ±2^53 which stay exact as int64 (or
// json.Number when they overflow int64).
func NormalizeArguments(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if v == nil {
			return map[string]any{}
		}
		return v
	case string:
		return decodeArguments(v)
	case json.RawMessage:
		return decodeArguments(string(v))
	case []byte:
		return decodeArguments(string(v))
	}

	if m, ok := stringKeyedMap(raw); ok {
		return m
	}
	return map[string]any{inputKey: raw}
}

func decodeArguments(s string) map[string]any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return map[string]any{inputKey: s}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return map[string]any{inputKey: s}
	}

	decoded = convertNumbers(decoded)
	if m, ok := decoded.(map[string]any); ok {
		return m
	}
	return map[string]any{inputKey: decoded}
}

func convertNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		return numberValue(x)
	case map[string]any:
		for k, e := range x {
			x[k] = convertNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = convertNumbers(e)
		}
		return x
	}
	return v
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		if i > maxExactInt || i < -maxExactInt {
			return i
		}
		return float64(i)
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return n
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n
}

// stringKeyedMap copies maps such as map[string]string into map[string]any.
func stringKeyedMap(raw any) (map[string]any, bool) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
