package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimulationInput(t *testing.T) {
	in, err := ParseSimulationInput([]byte(`{"voltage": 120, "resistances": [10, 20, 30]}`))
	require.NoError(t, err)
	assert.Equal(t, 120.0, in.Voltage)
	assert.Equal(t, []float64{10, 20, 30}, in.Resistances)
}

func TestParseSimulationInputNumericStrings(t *testing.T) {
	in, err := ParseSimulationInput([]byte(`{"voltage": "230", "resistances": ["5", 5]}`))
	require.NoError(t, err)
	assert.Equal(t, 230.0, in.Voltage)
	assert.Equal(t, []float64{5, 5}, in.Resistances)
}

func TestParseSimulationInputBadValues(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"voltage":`},
		{"voltage not numeric", `{"voltage": "abc"}`},
		{"resistances not a list", `{"resistances": 10}`},
		{"resistance not numeric", `{"resistances": [10, true]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSimulationInput([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestRunShortCircuit(t *testing.T) {
	res, err := RunShortCircuit(SimulationInput{Voltage: 120, Resistances: []float64{10, 20, 30}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.InDelta(t, 2.0, res.FaultCurrent, 1e-9)
	assert.InDelta(t, 60.0, res.TotalResistance, 1e-9)
}

func TestRunShortCircuitZeroResistance(t *testing.T) {
	_, err := RunShortCircuit(SimulationInput{Voltage: 120})
	require.Error(t, err)
	assert.Equal(t, "Total resistance cannot be zero.", err.Error())

	_, err = RunShortCircuit(SimulationInput{Voltage: 120, Resistances: []float64{10, -10}})
	require.Error(t, err)
}
