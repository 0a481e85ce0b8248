// Package config loads connector configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11 to
// deliver a small API that:
//
//   - Loads values from one or multiple `.env` files (falling back to the
//     default `.env` in the current working directory).
//   - Parses the environment into any Go struct using `env` field tags.
//   - Caches each successfully loaded configuration type so it is only
//     parsed once for the lifetime of the process.
//
// # Usage
//
// Annotate a struct with env tags and load it:
//
//	type RedisConfig struct {
//	    URL string `env:"REDIS_URL,required"`
//	}
//
//	var cfg RedisConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
// MustLoad panics on failure and is suitable for configuration the process
// cannot run without. ResetCache clears the cache between tests that mutate
// the environment.
//
// # Error Handling
//
// Sentinel errors can be matched with errors.Is:
//
//   - ErrParsingConfig   – failed to parse env vars into the struct.
//   - ErrLoadingEnvFiles – an explicitly requested .env file failed to load.
//   - ErrNilPointer      – nil pointer passed to Load/MustLoad.
package config
