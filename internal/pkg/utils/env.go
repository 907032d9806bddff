package utils

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// getEnv reads key and parses it. Unset or unparsable values fall back to
// defaultValue; the zap logger is not built yet, so parse failures go to the
// standard logger.
func getEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	value, err := parse(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Error parsing %s: %v, will use default value", key, err)
		return defaultValue
	}
	return value
}

func GetEnvString(key, defaultValue string) string {
	return getEnv(key, defaultValue, func(raw string) (string, error) { return raw, nil })
}

func GetEnvInt(key string, defaultValue int) int {
	return getEnv(key, defaultValue, strconv.Atoi)
}

func GetEnvBool(key string, defaultValue bool) bool {
	return getEnv(key, defaultValue, strconv.ParseBool)
}
