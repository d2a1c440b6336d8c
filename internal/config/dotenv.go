// Package config loads the process-level settings of the reminder commands:
// the optional .env file, provider credentials, reminder targets and the AWS
// SDK configuration.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// dotEnvDirs are searched in order for a .env file.
var dotEnvDirs = []string{".", ".."}

// LoadDotEnv loads the first .env file found in the working directory or its
// parent. Variables already present in the environment win. It returns the
// path that was loaded, or "" when no file exists.
func LoadDotEnv() (string, error) {
	for _, dir := range dotEnvDirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		if err := godotenv.Load(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", nil
}
