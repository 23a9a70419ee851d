package project

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AccessoryColumn returns the storage column of the i-th accessory, 1-based.
func AccessoryColumn(i int) string {
	return "accessory_" + strconv.Itoa(i)
}

// Columns flattens p into storage columns. Accessories spread over
// accessory_1..accessory_10; unused slots are null.
func Columns(p Project) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	cols := map[string]any{}
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	delete(cols, "accessories")
	for i := 1; i <= MaxAccessories; i++ {
		cols[AccessoryColumn(i)] = nil
	}
	n := 0
	for _, a := range p.Accessories {
		if a == "" {
			continue
		}
		n++
		if n > MaxAccessories {
			break
		}
		cols[AccessoryColumn(n)] = a
	}
	return cols, nil
}

// FromColumns rebuilds a Project from storage columns. An "accessories" list
// is honored too, so both the flat and the list shape decode.
func FromColumns(cols map[string]any) (Project, error) {
	clean := make(map[string]any, len(cols))
	var accessories []string
	if list, ok := cols["accessories"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				accessories = append(accessories, s)
			}
		}
	}
	for k, v := range cols {
		if k == "accessories" {
			continue
		}
		if v == nil {
			continue
		}
		clean[k] = v
	}
	for i := 1; i <= MaxAccessories; i++ {
		col := AccessoryColumn(i)
		if s, ok := clean[col].(string); ok && s != "" {
			accessories = append(accessories, s)
		}
		delete(clean, col)
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return Project{}, fmt.Errorf("decode project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return Project{}, fmt.Errorf("decode project: %w", err)
	}
	p.Accessories = accessories
	p.CompactAccessories()
	return p, nil
}
