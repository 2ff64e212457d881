package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// typesKey holds the Go kinds of top-level numeric fields inside an encoded
// entry, so integers come back as integers. It is reserved.
const typesKey = "$types"

// ErrReservedField is returned by Encode for an entry using typesKey.
var ErrReservedField = errors.New("pipeline: entry uses reserved field " + typesKey)

// Entry is a single item produced by an input plugin. Every entry carries at
// least "title" and "url"; other fields are free-form.
//
// Encode and DecodeEntry round-trip strings, bools, nil, float64, every Go
// integer kind, float32 and json.Number at the top level. Nested maps and
// slices follow encoding/json rules, so numbers inside them come back as
// float64. Other types come back in their JSON form.
type Entry map[string]any

// NewEntry builds an entry with the mandatory fields set.
func NewEntry(title, url string) Entry {
	return Entry{"title": title, "url": url}
}

// Title returns the "title" field, or "" when missing or not a string.
func (e Entry) Title() string {
	s, _ := e["title"].(string)
	return s
}

// URL returns the "url" field, or "" when missing or not a string.
func (e Entry) URL() string {
	s, _ := e["url"].(string)
	return s
}

// Encode serializes the entry as a JSON object with sorted keys.
func (e Entry) Encode() ([]byte, error) {
	if _, ok := e[typesKey]; ok {
		return nil, ErrReservedField
	}

	out := make(map[string]any, len(e)+1)
	var kinds map[string]string
	for k, v := range e {
		out[k] = v
		if kind := numberKind(v); kind != "" {
			if kinds == nil {
				kinds = map[string]string{}
			}
			kinds[k] = kind
		}
	}
	if kinds != nil {
		out[typesKey] = kinds
	}

	return json.Marshal(out)
}

// DecodeEntry parses an encoded entry, restoring the numeric kinds recorded
// by Encode.
func DecodeEntry(data []byte) (Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errNullEntry
	}

	kinds := map[string]string{}
	if t, ok := raw[typesKey].(map[string]any); ok {
		for k, v := range t {
			if s, ok := v.(string); ok {
				kinds[k] = s
			}
		}
	}
	delete(raw, typesKey)

	e := make(Entry, len(raw))
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			e[k] = plain(v)
			continue
		}
		restored, err := restoreNumber(n, kinds[k])
		if err != nil {
			return nil, fmt.Errorf("pipeline: field %q: %w", k, err)
		}
		e[k] = restored
	}
	return e, nil
}

func numberKind(v any) string {
	switch v.(type) {
	case int:
		return "int"
	case int8:
		return "int8"
	case int16:
		return "int16"
	case int32:
		return "int32"
	case int64:
		return "int64"
	case uint:
		return "uint"
	case uint8:
		return "uint8"
	case uint16:
		return "uint16"
	case uint32:
		return "uint32"
	case uint64:
		return "uint64"
	case float32:
		return "float32"
	case json.Number:
		return "number"
	}
	return ""
}

func restoreNumber(n json.Number, kind string) (any, error) {
	s := n.String()
	switch kind {
	case "number":
		return n, nil
	case "int", "int8", "int16", "int32", "int64":
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "int":
			return int(i), nil
		case "int8":
			return int8(i), nil
		case "int16":
			return int16(i), nil
		case "int32":
			return int32(i), nil
		}
		return i, nil
	case "uint", "uint8", "uint16", "uint32", "uint64":
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "uint":
			return uint(u), nil
		case "uint8":
			return uint8(u), nil
		case "uint16":
			return uint16(u), nil
		case "uint32":
			return uint32(u), nil
		}
		return u, nil
	case "float32":
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// plain turns nested json.Number values into float64, as encoding/json does
// without UseNumber.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, x := range t {
			t[k] = plain(x)
		}
		return t
	case []any:
		for i, x := range t {
			t[i] = plain(x)
		}
		return t
	}
	return v
}
