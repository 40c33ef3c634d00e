// Package output provides the persistence document and BOM serializers.
package output

import (
	"encoding/json"
	"fmt"
	"os"
)

// writeJSON marshals v as indented JSON and writes it to outputPath (or stdout if "-").
func writeJSON(outputPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if outputPath == "-" {
		_, err = os.Stdout.Write(data)
		if err == nil {
			_, err = os.Stdout.WriteString("\n")
		}
		return err
	}

	return os.WriteFile(outputPath, append(data, '\n'), 0644)
}
