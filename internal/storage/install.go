package storage

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Install reads the image file at path and bulk-installs it at offset 0.
// It returns the number of bytes installed.
func Install(b Backend, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("unable to read image %s: %w", path, err)
	}

	if err := b.Store(0, data); err != nil {
		return 0, fmt.Errorf("unable to install image %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("size", len(data)).Str("kind", string(b.Kind())).Msg("Installed image")
	return len(data), nil
}
