package session

import (
	"fmt"
	"os"
)

// Static is a CredentialProvider that returns a fixed token.
// Suitable for tests and for deployments where the token is injected once.
type Static string

// Credential returns the fixed token for any account.
func (s Static) Credential(string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty static credential", ErrAuthRejected)
	}
	return string(s), nil
}

// Env is a CredentialProvider that reads the token from the named
// environment variable on every connect attempt, so an operator can rotate
// the token without restarting the bridge.
type Env string

// Credential returns the token from the environment.
func (e Env) Credential(string) (string, error) {
	token := os.Getenv(string(e))
	if token == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrAuthRejected, string(e))
	}
	return token, nil
}
