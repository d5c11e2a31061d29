package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup trims the value; an unset variable and a blank one are the same thing.
func lookup(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// GetString extracts a String value from the given environment variable
func GetString(name string, defaultValue ...string) string {
	value := lookup(name)
	if value == "" && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// MustGetString panics if the environment variable is not present
func MustGetString(name string) string {
	value := lookup(name)
	if value == "" {
		panic(fmt.Sprintf("%s can't be empty", name))
	}
	return value
}

// GetInt falls back to the default when the variable is missing or not an integer.
func GetInt(name string, defaultValue ...int) int {
	value, err := strconv.Atoi(lookup(name))
	if err != nil && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetBool(name string, defaultValue ...bool) bool {
	value, err := strconv.ParseBool(lookup(name))
	if err != nil && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// GetDuration accepts Go durations ("250ms", "2m") or a bare number of seconds.
func GetDuration(name string, defaultValue ...time.Duration) time.Duration {
	raw := lookup(name)
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}
