package config

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var networksYAML []byte

// Network is a named preset of the three GTFS-realtime endpoints of one operator.
type Network struct {
	Name             string `yaml:"name" validate:"required"`
	VehiclePositions string `yaml:"vehicle_positions" validate:"required,url"`
	TripUpdates      string `yaml:"trip_updates" validate:"required,url"`
	ServiceAlerts    string `yaml:"service_alerts" validate:"required,url"`
}

type networkFile struct {
	Networks map[string]Network `yaml:"networks" validate:"required,min=1,dive"`
}

// ParseNetworks decodes and validates a presets document.
func ParseNetworks(data []byte) (map[string]Network, error) {
	var f networkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse network presets: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid network presets: %w", err)
	}
	return f.Networks, nil
}

// Networks returns the built-in presets.
func Networks() (map[string]Network, error) {
	return ParseNetworks(networksYAML)
}

// NetworkNames returns the sorted keys of the built-in presets.
func NetworkNames() []string {
	networks, err := Networks()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
