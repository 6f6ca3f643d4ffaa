package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 style canonical JSON.
// This is the ONLY serialization used for digests and golden traces.
//
// Key differences from standard json.Marshal:
// 1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. Floats use the shortest round-trip form; NaN and Inf are rejected
// 5. No null (returns error)
//
// Supported inputs: string, bool, int, int64, float64, []any, map[string]any
// and the ir types Point, []Point, Rect and Frame.
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case float64:
		return marshalCanonicalFloat(val)
	case Outcome:
		return marshalCanonicalString(string(val))
	case Point:
		return marshalCanonicalObject(PointValue(val))
	case []Point:
		return marshalCanonicalArray(PointsValue(val))
	case Rect:
		return marshalCanonicalObject(RectValue(val))
	case Frame:
		return marshalCanonicalObject(FrameValue(val))
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// Tokens standing in for non-finite numbers, which JSON cannot express.
const (
	TokenNaN    = "NaN"
	TokenPosInf = "Infinity"
	TokenNegInf = "-Infinity"
)

// NumberValue returns f itself when finite, otherwise its string token.
// Sample values are not validated, so anything derived from them goes
// through NumberValue before canonical encoding.
func NumberValue(f float64) any {
	switch {
	case math.IsNaN(f):
		return TokenNaN
	case math.IsInf(f, 1):
		return TokenPosInf
	case math.IsInf(f, -1):
		return TokenNegInf
	}
	return f
}

// ParseNumberValue reverses NumberValue.
func ParseNumberValue(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case json.Number:
		return val.Float64()
	case string:
		switch val {
		case TokenNaN:
			return math.NaN(), nil
		case TokenPosInf:
			return math.Inf(1), nil
		case TokenNegInf:
			return math.Inf(-1), nil
		}
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// PointValue converts a point to its canonical object form.
func PointValue(p Point) map[string]any {
	return map[string]any{"x": NumberValue(p.X), "y": NumberValue(p.Y)}
}

// PointsValue converts a point slice to its canonical array form.
// A nil slice becomes an empty array.
func PointsValue(points []Point) []any {
	out := make([]any, len(points))
	for i, p := range points {
		out[i] = PointValue(p)
	}
	return out
}

// RectValue converts a rectangle to its canonical object form.
func RectValue(r Rect) map[string]any {
	return map[string]any{"x1": r.X1, "y1": r.Y1, "x2": r.X2, "y2": r.Y2}
}

// FrameValue converts a frame to its canonical object form.
// Fields that are not meaningful for the frame's outcome are omitted so the
// encoding mirrors the draw instructions that were actually issued.
func FrameValue(f Frame) map[string]any {
	obj := map[string]any{
		"seq":       f.Seq,
		"outcome":   string(f.Outcome),
		"rollovers": f.Rollovers,
		"pen":       f.Pen,
		"mask":      RectValue(f.Mask),
	}
	if f.Dropped > 0 {
		obj["dropped"] = f.Dropped
	}
	if f.ReplaceLeft {
		obj["left"] = PointsValue(f.Left)
	} else {
		obj["left_append"] = PointsValue(f.LeftAppend)
	}
	if f.ReplaceRight {
		obj["right"] = PointsValue(f.Right)
	}
	if f.Highlight != nil {
		obj["highlight"] = PointValue(*f.Highlight)
	}
	return obj
}

// marshalCanonicalFloat formats a finite float in its shortest round-trip form.
// Integral values below 1e21 are written without exponent, matching JSON
// number output of ECMAScript.
func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float is forbidden in canonical JSON: %v", f)
	}
	if f == 0 {
		return []byte("0"), nil // also folds -0
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; U+2028 and U+2029
// are emitted literally.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators converts \u2028 and \u2029 escapes back to literal
// characters, leaving \\u2028 (escaped backslash followed by text) intact.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			// An even run of backslashes before us means this one starts an escape.
			run := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range sortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// sortedKeys returns the object's keys in RFC 8785 order (UTF-16 code units).
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareUTF16(keys[i], keys[j]) < 0
	})
	return keys
}

// compareUTF16 compares strings by UTF-16 code units.
// Go's default string comparison uses UTF-8 which orders some keys differently.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
