package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/sweeptrace/internal/engine"
	"github.com/roach88/sweeptrace/internal/ir"
)

// marshalSamples converts a batch to canonical JSON TEXT for storage.
// Non-finite numbers are stored as string tokens.
func marshalSamples(batch []ir.Sample) (string, error) {
	data, err := ir.MarshalCanonical(ir.SamplesValue(batch))
	if err != nil {
		return "", fmt.Errorf("marshal samples: %w", err)
	}
	return string(data), nil
}

// unmarshalSamples parses canonical JSON TEXT back into a batch.
func unmarshalSamples(data string) ([]ir.Sample, error) {
	var raw []map[string]any
	if err := decodeNumbers(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal samples: %w", err)
	}

	batch := make([]ir.Sample, len(raw))
	for i, obj := range raw {
		ts, err := ir.ParseNumberValue(obj["t"])
		if err != nil {
			return nil, fmt.Errorf("unmarshal samples: [%d].t: %w", i, err)
		}
		v, err := ir.ParseNumberValue(obj["y"])
		if err != nil {
			return nil, fmt.Errorf("unmarshal samples: [%d].y: %w", i, err)
		}
		batch[i] = ir.Sample{TimestampMs: ts, Value: v}
	}
	return batch, nil
}

// marshalConfig converts a sweep configuration to canonical JSON TEXT.
func marshalConfig(cfg engine.Config) (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"window_width_ms":  cfg.WindowWidthMs,
		"value_min":        cfg.ValueMin,
		"value_max":        cfg.ValueMax,
		"lead_margin":      cfg.LeadMargin,
		"max_append_chunk": cfg.MaxAppendChunk,
	})
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// unmarshalConfig parses a stored sweep configuration.
func unmarshalConfig(data string) (engine.Config, error) {
	var raw struct {
		WindowWidthMs  float64 `json:"window_width_ms"`
		ValueMin       float64 `json:"value_min"`
		ValueMax       float64 `json:"value_max"`
		LeadMargin     float64 `json:"lead_margin"`
		MaxAppendChunk int     `json:"max_append_chunk"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return engine.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return engine.Config{
		WindowWidthMs:  raw.WindowWidthMs,
		ValueMin:       raw.ValueMin,
		ValueMax:       raw.ValueMax,
		LeadMargin:     raw.LeadMargin,
		MaxAppendChunk: raw.MaxAppendChunk,
	}, nil
}

// marshalFrame converts a frame to canonical JSON TEXT.
func marshalFrame(f ir.Frame) (string, error) {
	data, err := ir.MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("marshal frame: %w", err)
	}
	return string(data), nil
}

// UnmarshalFrame parses a frame stored in canonical form.
// Fields omitted by the canonical encoding come back as their zero value.
func UnmarshalFrame(data string) (ir.Frame, error) {
	var obj map[string]any
	if err := decodeNumbers(data, &obj); err != nil {
		return ir.Frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}

	var f ir.Frame
	var err error
	if f.Seq, err = intField(obj, "seq"); err != nil {
		return ir.Frame{}, err
	}
	rollovers, err := intField(obj, "rollovers")
	if err != nil {
		return ir.Frame{}, err
	}
	f.Rollovers = int(rollovers)
	if f.Pen, err = ir.ParseNumberValue(obj["pen"]); err != nil {
		return ir.Frame{}, fmt.Errorf("unmarshal frame: pen: %w", err)
	}
	outcome, _ := obj["outcome"].(string)
	f.Outcome = ir.Outcome(outcome)

	if _, ok := obj["dropped"]; ok {
		dropped, err := intField(obj, "dropped")
		if err != nil {
			return ir.Frame{}, err
		}
		f.Dropped = int(dropped)
	}

	if raw, ok := obj["left"]; ok {
		f.ReplaceLeft = true
		if f.Left, err = pointsField(raw); err != nil {
			return ir.Frame{}, fmt.Errorf("unmarshal frame: left: %w", err)
		}
	} else if raw, ok := obj["left_append"]; ok {
		if f.LeftAppend, err = pointsField(raw); err != nil {
			return ir.Frame{}, fmt.Errorf("unmarshal frame: left_append: %w", err)
		}
	}
	if raw, ok := obj["right"]; ok {
		f.ReplaceRight = true
		if f.Right, err = pointsField(raw); err != nil {
			return ir.Frame{}, fmt.Errorf("unmarshal frame: right: %w", err)
		}
	}
	if raw, ok := obj["highlight"]; ok {
		p, err := pointField(raw)
		if err != nil {
			return ir.Frame{}, fmt.Errorf("unmarshal frame: highlight: %w", err)
		}
		f.Highlight = &p
	}

	mask, ok := obj["mask"].(map[string]any)
	if !ok {
		return ir.Frame{}, fmt.Errorf("unmarshal frame: mask missing")
	}
	coords := make([]float64, 4)
	for i, key := range []string{"x1", "y1", "x2", "y2"} {
		if coords[i], err = ir.ParseNumberValue(mask[key]); err != nil {
			return ir.Frame{}, fmt.Errorf("unmarshal frame: mask.%s: %w", key, err)
		}
	}
	f.Mask = ir.Rect{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}

	return f, nil
}

// decodeNumbers decodes JSON keeping numbers as json.Number, so integral
// values like seq survive beyond 2^53.
func decodeNumbers(data string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	return dec.Decode(v)
}

func intField(obj map[string]any, key string) (int64, error) {
	n, ok := obj[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("unmarshal frame: %s is not a number", key)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("unmarshal frame: %s: %w", key, err)
	}
	return v, nil
}

func pointField(raw any) (ir.Point, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return ir.Point{}, fmt.Errorf("point is not an object")
	}
	x, err := ir.ParseNumberValue(obj["x"])
	if err != nil {
		return ir.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := ir.ParseNumberValue(obj["y"])
	if err != nil {
		return ir.Point{}, fmt.Errorf("y: %w", err)
	}
	return ir.Point{X: x, Y: y}, nil
}

func pointsField(raw any) ([]ir.Point, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("points are not an array")
	}
	points := make([]ir.Point, len(arr))
	for i, item := range arr {
		p, err := pointField(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		points[i] = p
	}
	return points, nil
}
