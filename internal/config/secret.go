package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the inline value when set, otherwise the trimmed
// content of file. Both empty yields "".
func ResolveSecret(path, inline, file string) (string, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return v, nil
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return "", nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}
