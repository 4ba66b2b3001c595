package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Keys of the store credentials in the env file.
const (
	KeySupabaseURL = "SUPABASE_URL"
	KeySupabaseKey = "SUPABASE_KEY"
)

// Credentials are the Supabase project URL and API key.
type Credentials struct {
	URL       string
	Key       string
	FileFound bool
}

// Configured reports whether the env file exists and holds both values.
func (c *Credentials) Configured() bool {
	return c.FileFound && c.URL != "" && c.Key != ""
}

// LoadCredentials reads the credentials from the env file at path.
// Non-empty environment variables take precedence over the file.
// A missing file is not an error.
func LoadCredentials(path string) (*Credentials, error) {
	creds := &Credentials{}

	values, err := godotenv.Read(path)
	switch {
	case err == nil:
		creds.FileFound = true
		creds.URL = values[KeySupabaseURL]
		creds.Key = values[KeySupabaseKey]
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	if v := os.Getenv(KeySupabaseURL); v != "" {
		creds.URL = v
	}
	if v := os.Getenv(KeySupabaseKey); v != "" {
		creds.Key = v
	}
	return creds, nil
}

// SaveCredentials writes the credentials to the env file at path, keeping
// any other keys already in it.
func SaveCredentials(path, url, key string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read env file %s: %w", path, err)
		}
		values = map[string]string{}
	}

	values[KeySupabaseURL] = url
	values[KeySupabaseKey] = key

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create env file directory: %w", err)
		}
	}
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write env file %s: %w", path, err)
	}
	return nil
}
