// Package common provides shared constants, types, and utilities
// used across the auto-mudfish application.
package common

import (
	"os"
	"path/filepath"
	"strings"
)

// userConfigBase returns the per-user configuration root. On Windows this is
// %AppData%; elsewhere it mirrors the XDG layout under ~/.config.
func userConfigBase() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir, nil
	}
	if filepath.Separator == '\\' {
		return os.UserConfigDir()
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config"), nil
}

// GetConfigDir returns the path to the application configuration directory.
// It creates the directory if it doesn't exist.
func GetConfigDir() (string, error) {
	base, err := userConfigBase()
	if err != nil {
		return "", WrapError(err, "failed to get home directory")
	}

	configDir := filepath.Join(base, ConfigDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", WrapError(err, "failed to create config directory")
	}

	return configDir, nil
}

// GetCacheDir returns the per-user cache directory for the application.
func GetCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", WrapError(err, "failed to get cache directory")
	}

	cacheDir := filepath.Join(base, ConfigDirName)
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return "", WrapError(err, "failed to create cache directory")
	}

	return cacheDir, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StringInSlice checks if a string is in a slice (case-insensitive).
func StringInSlice(s string, slice []string) bool {
	for _, item := range slice {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// MaskSecret replaces a non-empty secret with a fixed mask for log output.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
