// Package cmd provides output formatting utilities for unitd CLI.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// PrintOutput formats data as JSON or YAML. Text output is rendered by the
// caller; PrintOutput rejects it along with unknown formats.
func PrintOutput(w io.Writer, format string, data interface{}) error {
	switch strings.ToLower(format) {
	case OutputJSON:
		return printJSON(w, data)
	case OutputYAML, "yml":
		return printYAML(w, data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer func() {
		_ = encoder.Close()
	}()
	return encoder.Encode(data)
}

// LevelOutput is the structured form of one level in service list.
type LevelOutput struct {
	Level int          `json:"level" yaml:"level"`
	Waves [][]UnitItem `json:"waves" yaml:"waves"`
}

// UnitItem describes one unit of a level.
type UnitItem struct {
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}
