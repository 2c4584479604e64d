package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAPSCRAPER_"

// EnvString returns the trimmed value of key and whether it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a time.Duration.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvFloat parses key as a float.
func EnvFloat(key string) (float64, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overrides cfg with MAPSCRAPER_* variables.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"BASE_URL":      &cfg.BaseURL,
		"DRIVER":        &cfg.Driver,
		"CHROME_PATH":   &cfg.ChromePath,
		"USER_AGENT":    &cfg.UserAgent,
		"LISTEN_ADDR":   &cfg.ListenAddr,
		"METRICS_ADDR":  &cfg.MetricsAddr,
		"STORE":         &cfg.StoreBackend,
		"DB_DIR":        &cfg.DBDir,
		"DYNAMO_TABLE":  &cfg.DynamoTable,
		"EXPORT_DIR":    &cfg.ExportDir,
		"EXPORT_BUCKET": &cfg.ExportBucket,
		"EXPORT_PREFIX": &cfg.ExportPrefix,
	}
	for name, dst := range strs {
		if value, ok := EnvString(EnvPrefix + name); ok {
			*dst = value
		}
	}
	// CHROME_PATH is honoured unprefixed as well.
	if cfg.ChromePath == "" {
		if value, ok := EnvString("CHROME_PATH"); ok {
			cfg.ChromePath = value
		}
	}

	ints := map[string]*int{
		"RESULTS_PER_SCROLL": &cfg.ResultsPerScroll,
		"STALL_LIMIT":        &cfg.StallLimit,
		"CREATE_BURST":       &cfg.CreateBurst,
		"CACHE_SIZE":         &cfg.CacheSize,
	}
	for name, dst := range ints {
		value, ok, err := EnvInt(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"WAIT_TIMEOUT":  &cfg.WaitTimeout,
		"POLL_INTERVAL": &cfg.PollInterval,
		"PAGE_TIMEOUT":  &cfg.PageTimeout,
	}
	for name, dst := range durations {
		value, ok, err := EnvDuration(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	bools := map[string]*bool{
		"HEADLESS": &cfg.Headless,
		"VERBOSE":  &cfg.Verbose,
	}
	for name, dst := range bools {
		value, ok, err := EnvBool(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvFloat(EnvPrefix + "CREATE_RATE"); err != nil {
		return err
	} else if ok {
		cfg.CreateRate = value
	}
	return nil
}
