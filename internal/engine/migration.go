package engine

import "fmt"

// Migrate copies every profile from src into dst.
// This works for:
// - File -> SQLite (moving a device to the database backend)
// - SQLite -> File (export for inspection or backup)
func Migrate(src, dst Backend) (int, error) {
	profiles, err := src.Profiles()
	if err != nil {
		return 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	copied := 0
	for _, profile := range profiles {
		data, err := src.Dump(profile)
		if err != nil {
			return copied, fmt.Errorf("failed to dump profile %s: %w", profile, err)
		}

		for k, v := range data {
			if err := dst.Set(profile, k, v); err != nil {
				return copied, fmt.Errorf("failed to set key %s in destination: %w", k, err)
			}
			copied++
		}
	}

	return copied, nil
}
