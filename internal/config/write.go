package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SetKeyInFile updates or adds an option in the config file, preserving
// comments and formatting. Section "" addresses the global options. An
// existing line is replaced in place; a new key is appended to the end of
// its section, and a missing section is appended to the file.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	current := ""
	inTarget := section == ""
	sectionSeen := section == ""
	insertIndex := -1
	if inTarget {
		insertIndex = 0
	}
	replaced := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
			inTarget = current == section
			if inTarget {
				sectionSeen = true
				insertIndex = i + 1
			}
			continue
		}
		if !inTarget {
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		insertIndex = i + 1
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			replaced = true
			break
		}
	}

	switch {
	case replaced:
	case !sectionSeen:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	default:
		lines = append(lines[:insertIndex], append([]string{newLine}, lines[insertIndex:]...)...)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// atomicWriteFile writes data to a temporary file in the same directory
// and renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
