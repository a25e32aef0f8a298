package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrFileMissing is returned when a manifest file to update does not exist.
var ErrFileMissing = errors.New("manifest file missing")

// RequireFile fails fast when path does not exist or is a directory.
func RequireFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileMissing, path)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileMissing, path)
	}
	return nil
}

// ReadField reads the scalar at key from the YAML file at path.
func ReadField(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := Field(data, key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// UpdateField rewrites the scalar at key in the YAML file at path, keeping the
// file mode, and returns the previous value.
func UpdateField(path, key, value string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	out, old, err := SetField(data, key, value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return old, nil
}
