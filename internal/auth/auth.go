// Package auth resolves the Hedra API key before any network call is made.
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/fpang/hedra-batch/internal/config"
)

// ResolveAPIKey retrieves the Hedra API key from available sources.
// Priority order:
//  1. The --api-key command line flag
//  2. The HEDRA_API_KEY environment variable
func ResolveAPIKey(flagValue string) (string, error) {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key, nil
	}

	if key := strings.TrimSpace(os.Getenv(config.EnvAPIKey)); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("API key not provided. Set %s or pass --api-key", config.EnvAPIKey)
}
