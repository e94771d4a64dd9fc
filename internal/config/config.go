// Package config resolves the compiler and compiler-flags a backend
// uses to build kernel source, following the environment-variable
// overrides and debug/release defaults in spec.md §6.
package config

import (
	"os"
	"strconv"

	"github.com/occa-go/occa/internal/constants"
)

// Compiler resolves the external compiler binary for backend, honoring
// its environment override if set.
func Compiler(backend constants.ModeTag) string {
	switch backend {
	case constants.DriverCompute:
		return envOr(constants.EnvDriverCompiler, constants.DriverCompilerDefault)
	case constants.HostShared:
		return envOr(constants.EnvHostCompiler, constants.HostCompilerDefault)
	default:
		return ""
	}
}

// CompilerFlags resolves the compiler flags for backend, honoring its
// environment override if set and falling back to the debug/release
// default selected by DebugBuild.
func CompilerFlags(backend constants.ModeTag) string {
	switch backend {
	case constants.DriverCompute:
		if v, ok := os.LookupEnv(constants.EnvDriverCompilerFlags); ok {
			return v
		}
		if DebugBuild() {
			return constants.DriverCompilerFlagsDebug
		}
		return constants.DriverCompilerFlagsRelease
	case constants.OpenCL:
		return envOr(constants.EnvOpenCLCompilerFlags, constants.OpenCLCompilerFlagsDefault)
	case constants.HostShared:
		if v, ok := os.LookupEnv(constants.EnvHostCompilerFlags); ok {
			return v
		}
		if DebugBuild() {
			return constants.HostCompilerFlagsDebug
		}
		return constants.HostCompilerFlagsRelease
	default:
		return ""
	}
}

// CacheDir resolves the compile-cache root directory.
func CacheDir() string {
	if v, ok := os.LookupEnv(constants.EnvCacheDir); ok {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return home + "/.occa/cache"
}

// DebugBuild reports whether debug compiler flags should be used.
func DebugBuild() bool {
	v, ok := os.LookupEnv(constants.EnvDebugBuild)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
