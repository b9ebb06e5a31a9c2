package handlers

import "fmt"

// ValidateExportPath checks a dirpath argument.
func ValidateExportPath(path string) error {
	if path == "" {
		return fmt.Errorf("export path cannot be empty")
	}
	if path[0] != '/' {
		return fmt.Errorf("export path must be absolute (start with /)")
	}
	if len(path) > MaxPathLen {
		return fmt.Errorf("export path too long (max %d characters)", MaxPathLen)
	}
	return nil
}
