package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode converts a tagged struct into a Row through its JSON form.
func Encode(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	row := Row{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	for k, v := range row {
		if n, ok := v.(json.Number); ok {
			row[k] = numberValue(n)
		}
	}
	return row, nil
}

// Decode converts rows (or a single Row) into dst through JSON.
func Decode(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

// Int64 reads an integer column that may have travelled as float64 or text.
func (r Row) Int64(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

// DecodeRows parses a JSON array of objects, keeping integers as int64.
func DecodeRows(data []byte) ([]Row, error) {
	var raw []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	out := make([]Row, 0, len(raw))
	for _, m := range raw {
		row := Row(m)
		for k, v := range row {
			if n, ok := v.(json.Number); ok {
				row[k] = numberValue(n)
			}
		}
		out = append(out, row)
	}
	return out, nil
}
