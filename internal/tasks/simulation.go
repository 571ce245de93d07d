package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// SimulationInput is the parsed circuit payload for a short-circuit run.
type SimulationInput struct {
	Voltage     float64
	Resistances []float64
}

// SimulationResult mirrors the wire shape clients already consume.
type SimulationResult struct {
	Status          string  `json:"status"`
	FaultCurrent    float64 `json:"fault_current"`
	TotalResistance float64 `json:"total_resistance"`
}

// ParseSimulationInput decodes the circuit JSON. Numbers may arrive as JSON
// numbers or numeric strings; anything else is a validation error surfaced
// to the client as a structured payload, not a 5xx.
func ParseSimulationInput(raw []byte) (SimulationInput, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SimulationInput{}, fmt.Errorf("invalid circuit JSON: %w", err)
	}

	in := SimulationInput{}
	if v, ok := doc["voltage"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return SimulationInput{}, fmt.Errorf("voltage: %w", err)
		}
		in.Voltage = f
	}
	if rs, ok := doc["resistances"]; ok {
		list, ok := rs.([]any)
		if !ok {
			return SimulationInput{}, errors.New("resistances must be a list")
		}
		for i, r := range list {
			f, err := toFloat(r)
			if err != nil {
				return SimulationInput{}, fmt.Errorf("resistances[%d]: %w", i, err)
			}
			in.Resistances = append(in.Resistances, f)
		}
	}
	return in, nil
}

// RunShortCircuit computes the fault current for a series circuit:
// I = V / ΣR.
func RunShortCircuit(in SimulationInput) (SimulationResult, error) {
	var total float64
	for _, r := range in.Resistances {
		total += r
	}
	if total == 0 {
		return SimulationResult{}, errors.New("Total resistance cannot be zero.")
	}
	return SimulationResult{
		Status:          "ok",
		FaultCurrent:    in.Voltage / total,
		TotalResistance: total,
	}, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
