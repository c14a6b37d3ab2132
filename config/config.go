package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	DefaultRegion        = "us-east-1"
	credentialsFileName  = ".s3mirror.cfg"
	credentialsAccessKey = "accessKey"
	credentialsSecretKey = "secretKey"
)

type Config struct {
	ApiURL    string
	AccessKey string
	SecretKey string
	Region    string
}

// CredentialError reports a credentials file that could not be used.
type CredentialError struct {
	Path string
	Err  error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("could not open configuration file %s: %v", e.Path, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables only")
	}

	config := &Config{
		ApiURL:    getEnv("API_URL", ""),
		AccessKey: getEnv("ACCESS_KEY", ""),
		SecretKey: getEnv("SECRET_KEY", ""),
		Region:    getEnv("REGION", DefaultRegion),
	}

	return config, nil
}

// HasCredentials reports whether both halves of a key pair are set.
func (c *Config) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// DefaultCredentialsPath returns the credentials file in the user's home
// directory.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return credentialsFileName
	}
	return filepath.Join(home, credentialsFileName)
}

// ReadCredentialsFile reads a properties-style file holding accessKey and
// secretKey entries.
func ReadCredentialsFile(path string) (accessKey, secretKey string, err error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return "", "", &CredentialError{Path: path, Err: err}
	}

	accessKey = values[credentialsAccessKey]
	secretKey = values[credentialsSecretKey]
	if accessKey == "" || secretKey == "" {
		return "", "", &CredentialError{
			Path: path,
			Err:  fmt.Errorf("file must define both %s and %s", credentialsAccessKey, credentialsSecretKey),
		}
	}

	return accessKey, secretKey, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
