// Package envconfig reads the ODLA_* environment variables that supply the
// defaults for new computations and for the command line tool.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel returns the log level for the application.
// Values are 0 or false INFO (Default), 1 or true DEBUG, 2 TRACE.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("ODLA_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

var (
	// Interpret makes new computations execute every builder call
	// immediately instead of buffering primitives until Execute.
	Interpret = Bool("ODLA_INTERPRET")
	// BF16 makes convolutions compute on bfloat16 copies of their operands.
	BF16 = Bool("ODLA_BF16")
	// NumThreads bounds the goroutines a kernel fans out to. 0 means one per CPU.
	NumThreads = Uint("ODLA_NUM_THREADS", 0)
)

// BoolWithDefault returns a reader for k that falls back to defaultValue
// when the variable is unset. Unparseable values count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}

			return b
		}

		return defaultValue
	}
}

// Bool returns a reader for k defaulting to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String returns a reader for s.
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint returns a reader for key that falls back to defaultValue when the
// variable is unset or invalid.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}

		return defaultValue
	}
}

// EnvVar describes one configuration variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every configuration variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"ODLA_DEBUG":       {"ODLA_DEBUG", LogLevel(), "Show additional debug information (e.g. ODLA_DEBUG=1, 2 for trace)"},
		"ODLA_INTERPRET":   {"ODLA_INTERPRET", Interpret(), "Execute each operator as soon as it is built"},
		"ODLA_BF16":        {"ODLA_BF16", BF16(), "Compute convolutions in bfloat16"},
		"ODLA_NUM_THREADS": {"ODLA_NUM_THREADS", NumThreads(), "Maximum goroutines per kernel (default: number of CPUs)"},
	}
}

// Values returns the configuration as strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of leading and trailing
// quotes and spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
