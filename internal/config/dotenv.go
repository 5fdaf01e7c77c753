package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file and sets environment variables.
// Existing env vars are not overridden (env takes precedence).
// A missing file returns an error the caller may ignore.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}
