package config

import "errors"

// Validation errors returned by Config.Validate, usable with errors.Is.
var (
	ErrInvalidBaseURL          = errors.New("invalid base URL: must be an absolute URL with a host")
	ErrInvalidDriver           = errors.New("invalid driver: must be chrome or static")
	ErrInvalidStore            = errors.New("invalid store backend: must be memory, sqlite or dynamodb")
	ErrMissingDBDir            = errors.New("sqlite store requires a database directory")
	ErrMissingDynamoTable      = errors.New("dynamodb store requires a table name")
	ErrInvalidTimeout          = errors.New("invalid timeout: must be positive")
	ErrInvalidDelay            = errors.New("invalid delay range: min must be non-negative and not exceed max")
	ErrInvalidResultsPerScroll = errors.New("invalid results per scroll: must be positive")
	ErrInvalidStallLimit       = errors.New("invalid stall limit: must be positive")
	ErrInvalidRate             = errors.New("invalid create rate: rate and burst must be positive")
	ErrEmptyUserAgent          = errors.New("user agent cannot be empty")
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")
