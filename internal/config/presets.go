package config

import "sort"

// Presets are named horizons per model for `daesim init --preset`.
var Presets = map[string]map[string]HorizonConfig{
	"oscillator": {
		"period": {Start: 0, Stop: 6.283185307179586, Step: 0.05},
		"long":   {Start: 0, Stop: 50, Step: 0.1},
		"fine":   {Start: 0, Stop: 5, Step: 0.001},
	},
	"pendulum": {
		"swing":  {Start: 0, Stop: 10, Step: 0.01},
		"settle": {Start: 0, Stop: 60, Step: 0.05},
	},
	"vanderpol": {
		"cycle":     {Start: 0, Stop: 20, Step: 0.02},
		"transient": {Start: 0, Stop: 3, Step: 0.005},
	},
}

func GetPreset(model, preset string) (HorizonConfig, bool) {
	modelPresets, ok := Presets[model]
	if !ok {
		return HorizonConfig{}, false
	}
	h, ok := modelPresets[preset]
	return h, ok
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
