package mappings

import (
	"bytes"
	_ "embed"
)

//go:embed default_mapping.yaml
var defaultMapping []byte

// DefaultFile returns the mapping that matches the built-in chart.
func DefaultFile() (File, error) {
	return LoadFile(bytes.NewReader(defaultMapping))
}
