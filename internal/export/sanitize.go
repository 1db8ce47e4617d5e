package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrOutputDirRequired = errors.New("output_dir is required")
	ErrPathTraversal     = errors.New("output_dir cannot contain path traversal")
	ErrUncleanPath       = errors.New("output_dir must be clean path")
	ErrNotDirectory      = errors.New("output_dir is not a directory")
)

// maxFileNameLen bounds the base name of written export files.
const maxFileNameLen = 100

// SanitizeName strips control characters, replaces anything outside a
// conservative set with '_', and truncates to maxLen runes when maxLen > 0.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	}
	return false
}

// ValidateOutputDir requires an existing, clean directory path without
// ".." segments.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return ErrOutputDirRequired
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return ErrPathTraversal
		}
	}
	if filepath.Clean(dir) != dir {
		return ErrUncleanPath
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output_dir does not exist: %w", err)
		}
		return fmt.Errorf("invalid output_dir: %w", err)
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// FileName builds "<sanitized name>.<ext>", falling back to "timeline".
func FileName(name string, f Format) string {
	base := SanitizeName(name, maxFileNameLen)
	base = strings.TrimLeft(base, ".")
	if base == "" {
		base = "timeline"
	}
	return base + f.Ext()
}

// WriteFile validates dir and writes data to dir/FileName(name, f). It
// returns the written path.
func WriteFile(dir, name string, f Format, data []byte) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(name, f))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
