// Package config implements fail-open environment loading: every value is
// parsed and validated, and an invalid value is replaced by its default with a
// warning instead of failing startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadResult is the outcome of loading one value. Warning is set exactly when
// FallbackApplied is true.
type LoadResult[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

// Validator checks a parsed value. A nil Validator accepts everything.
type Validator[T any] func(T) error

// LoadEnv reads envKey, parses it with parse and validates the result. An unset
// or blank variable yields defaultValue without a warning.
func LoadEnv[T any](envKey string, defaultValue T, parse func(string) (T, error), validate Validator[T]) LoadResult[T] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return LoadResult[T]{Value: defaultValue}
	}

	value, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(value)
	}
	if err != nil {
		return LoadResult[T]{
			Value:           defaultValue,
			Warning:         fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}
	return LoadResult[T]{Value: value}
}

// LoadEnvWithFallback loads a string such as a cron expression or timezone.
func LoadEnvWithFallback(envKey, defaultValue string, validate Validator[string]) LoadResult[string] {
	return LoadEnv(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validate)
}

// LoadEnvDuration loads a time.ParseDuration value ("15s", "4m", "720h").
func LoadEnvDuration(envKey string, defaultValue time.Duration, validate Validator[time.Duration]) LoadResult[time.Duration] {
	return LoadEnv(envKey, defaultValue, time.ParseDuration, validate)
}

// LoadEnvInt loads a base-10 integer.
func LoadEnvInt(envKey string, defaultValue int, validate Validator[int]) LoadResult[int] {
	return LoadEnv(envKey, defaultValue, func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}, validate)
}

// LoadEnvBool loads a boolean in any form strconv.ParseBool accepts.
func LoadEnvBool(envKey string, defaultValue bool) LoadResult[bool] {
	return LoadEnv(envKey, defaultValue, func(s string) (bool, error) {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return v, nil
	}, nil)
}
