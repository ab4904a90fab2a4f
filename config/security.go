package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DensusHere/mywallet-sub001/errors"
)

const (
	maxConfigSize = 10 << 20 // 10MB
	maxJSONDepth  = 100
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

// validateConfigPath rejects empty or overlong paths, relative paths that
// resolve outside the working directory, and files without a JSON extension.
func validateConfigPath(path string) error {
	if path == "" {
		return pathError(path, "empty path")
	}
	if len(path) > maxPathLen {
		return pathError(path, fmt.Sprintf("path too long: %d > %d", len(path), maxPathLen))
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return pathError(path, "cannot resolve absolute path: "+err.Error())
	}
	if filepath.IsAbs(path) {
		if strings.Contains(filepath.ToSlash(absPath), "..") {
			return pathError(path, "path traversal not allowed")
		}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return errors.WrapFatal(err, "config", "validateConfigPath", "get working directory")
		}
		rel, err := filepath.Rel(cwd, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return pathError(path, "path resolves outside working directory")
		}
	}

	if !strings.HasSuffix(path, ".json") {
		return pathError(path, "only JSON files allowed")
	}
	return nil
}

func pathError(path, reason string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s: %s", errors.ErrInvalidConfig, path, reason),
		"config", "validateConfigPath", "validate path")
}

// ReadFile reads a JSON document after the path, size, file type and nesting
// checks applied to configuration layers.
func ReadFile(path string) ([]byte, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, errors.WrapInvalid(err, "config", "ReadFile", "check structure")
	}
	return data, nil
}

func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrMissingConfig, path),
				"config", "safeReadFile", "stat file")
		}
		return nil, errors.WrapTransient(err, "config", "safeReadFile", "stat file")
	}
	if info.Size() > maxConfigSize {
		return nil, pathError(path, fmt.Sprintf("file too large: %d bytes > %d", info.Size(), maxConfigSize))
	}
	if !info.Mode().IsRegular() {
		return nil, pathError(path, "not a regular file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "config", "safeReadFile", "read file")
	}
	return data, nil
}

func safeWriteFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return pathError(path, fmt.Sprintf("data too large: %d bytes > %d", len(data), maxConfigSize))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapTransient(err, "config", "safeWriteFile", "write file")
	}
	return nil
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateJSONDepth bounds bracket nesting before the document is decoded.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced brackets", errors.ErrParsingFailed)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unclosed brackets (depth=%d)", errors.ErrParsingFailed, depth)
	}
	return nil
}
