package backup

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Encode writes data as YAML.
func Encode(w io.Writer, data *BackupData) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	return enc.Close()
}

// Decode reads one snapshot. JSON input is accepted since it is valid YAML.
// Decode checks syntax only; Import validates the content.
func Decode(r io.Reader) (*BackupData, error) {
	var data BackupData
	if err := yaml.NewDecoder(r).Decode(&data); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", types.ErrInvalidBackup)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBackup, err)
	}
	return &data, nil
}
