package config

import (
	"os"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; the first readable one wins.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads KEY=VALUE pairs from the first env file found. Variables
// already in the process environment are not overwritten.
func loadEnvFile() error {
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return ErrInvalid.WithContext("env_file", path).Wrap(err)
		}
		return nil
	}
	return os.ErrNotExist
}
