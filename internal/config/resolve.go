package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// configDir is set externally via SetConfigDir (the --config flag)
// and, when non-empty, takes priority over every other search path.
var configDir string

// envSearchDirs lists where .env.{env} files are searched (dev/test
// only — production injects credentials via systemd EnvironmentFile=).
var envSearchDirs = []string{
	".",
	"..",
}

// SetConfigDir sets the config file directory (the --config flag).
// Load will search here first.
func SetConfigDir(dir string) {
	configDir = dir
}

// configPathsForEnv returns the default config search paths for env.
func configPathsForEnv(env Environment) []string {
	if env == EnvProduction {
		return []string{"/etc/bos"}
	}
	return []string{"configs", "../configs"}
}

// GetConfigDir returns the directory config was (or would be) loaded
// from, used by the first-run path to decide where to write a new
// config file.
//
// Priority: --config flag, root user → /etc/bos, /etc/bos already
// writable, else configs/ (dev fallback).
func GetConfigDir() string {
	if configDir != "" {
		return configDir
	}
	if IsRoot() {
		return "/etc/bos"
	}
	if info, err := os.Stat("/etc/bos"); err == nil && info.IsDir() {
		testFile := "/etc/bos/.write_test"
		if err := os.WriteFile(testFile, []byte("test"), 0644); err == nil {
			os.Remove(testFile)
			return "/etc/bos"
		}
	}
	return "configs"
}

// GetConfigFilePath returns the path config was actually loaded from.
func GetConfigFilePath() string {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	cfg := loadYAMLConfig(env)
	return cfg.loadedFrom
}

// ConfigExists reports whether a config file for the current
// APP_ENV can be found on any search path.
func ConfigExists() bool {
	return findConfigFile() != ""
}

// IsRoot reports whether the current process is running as root.
func IsRoot() bool {
	return os.Getuid() == 0
}

// ReadConfigFile reads the raw YAML of the currently-loaded config
// file, for exposure via a config-inspection endpoint.
func ReadConfigFile() ([]byte, string, error) {
	path := GetConfigFilePath()
	if path == "" {
		return nil, "", fmt.Errorf("no config file found")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	return data, path, nil
}

// findConfigFile searches every effective config path for
// {APP_ENV}.yaml, returning the first match or "".
func findConfigFile(extraNames ...string) string {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	names := []string{fmt.Sprintf("%s.yaml", env)}
	names = append(names, extraNames...)
	paths := effectiveConfigPaths()
	for _, base := range paths {
		for _, name := range names {
			p := filepath.Join(base, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// effectiveConfigPaths returns the search paths actually in effect.
//
// Priority: --config flag (SetConfigDir), CONFIG_DIR env var,
// APP_ENV-selected default.
func effectiveConfigPaths() []string {
	if configDir != "" {
		return []string{configDir}
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return []string{dir}
	}
	env := parseEnv(getEnv("APP_ENV", "dev"))
	return configPathsForEnv(env)
}

// loadEnvFiles loads .env.{env} (dev/test only; production credentials
// come from systemd EnvironmentFile= or the shell environment).
// godotenv.Load never overrides variables already set, so the shell
// environment always wins over the file.
func loadEnvFiles(env Environment) {
	if env == EnvProduction {
		return
	}
	envFileName := fmt.Sprintf(".env.%s", string(env))
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, envFileName)); err == nil {
			break
		}
	}
}
