package utils

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Ternary returns a if cond is true, else b.
func Ternary(cond bool, a, b any) any {
	if cond {
		return a
	}
	return b
}

// UnmarshalFile reads a JSON file into the given structure and validates it if
// it implements the Config contract.
func UnmarshalFile(filePath string, dest any, validateAfter bool) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %s", filePath, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal file %s: %s", filePath, err)
	}
	if validateAfter {
		if config, ok := dest.(interface{ Validate() error }); ok {
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid config in %s: %s", filePath, err)
			}
		}
	}

	return nil
}
