package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "PROPGEO"

// Flag and key names.
const (
	KeyEnv         = "env"
	KeyFile        = "file"
	KeyCountry     = "country"
	KeyLanguage    = "language"
	KeyPause       = "pause"
	KeyTimeout     = "timeout"
	KeyOutput      = "output"
	KeyProvider    = "provider"
	KeyMetricsFile = "metrics-file"
	KeyAPIKey      = "api-key"
	KeyEndpoint    = "endpoint"
	KeyUserAgent   = "user-agent"
)

var (
	ErrInvalidCountry  = errors.New("invalid country code")
	ErrInvalidLanguage = errors.New("invalid language tag")
	ErrInvalidPause    = errors.New("pause must not be negative")
	ErrInvalidTimeout  = errors.New("timeout must be positive")
	ErrOutOfRange      = errors.New("duration out of range")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("provider requires an API key (set " + EnvPrefix + "_API_KEY)")
)

// Config holds the settings of a single run.
//
// Fields:
// - Env: The logging environment (local, development, production).
// - File: Path of a newline-separated property list, empty when unused.
// - Properties: Property names given as positional arguments.
// - Country: Comma separated ISO 3166-1 alpha-2 codes restricting matches.
// - Language: Preferred language of the results, empty for the API default.
// - Pause: Wait after each provider request.
// - Timeout: HTTP timeout per provider request.
// - Output: CSV destination, empty for standard output.
// - Provider: Geocoding provider name (nominatim, google).
// - MetricsFile: Prometheus textfile destination, empty to skip.
// - APIKey, Endpoint, UserAgent: Provider credentials and overrides.
type Config struct {
	Env         string
	File        string
	Properties  []string
	Country     string
	Language    string
	Pause       time.Duration
	Timeout     time.Duration
	Output      string
	Provider    string
	MetricsFile string
	APIKey      string
	Endpoint    string
	UserAgent   string
}

// maxSeconds is the longest span, in seconds, a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// RegisterFlags declares the command line flags read by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP(KeyFile, "f", "", "Path to a newline-separated file of property names.")
	flags.StringP(KeyCountry, "c", "us", "ISO country code(s) to constrain results, comma separated.")
	flags.Float64P(KeyPause, "p", 1.0, "Seconds to wait between requests to respect rate limits.")
	flags.IntP(KeyTimeout, "t", 15, "HTTP timeout in seconds.")
	flags.StringP(KeyOutput, "o", "", "Optional path to write CSV output. Defaults to stdout.")
	flags.StringP(KeyLanguage, "l", "", "Preferred result language as a BCP 47 tag (e.g. en, es).")
	flags.String(KeyProvider, "nominatim", "Geocoding provider: nominatim or google.")
	flags.String(KeyMetricsFile, "", "Optional path to write Prometheus metrics in textfile format.")
}

// Load merges flags, environment variables (prefixed with PROPGEO_, optionally
// from a .env file) and defaults into a validated Config. Flags set on the
// command line take precedence over the environment.
func Load(flags *pflag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyEnv, "production")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyEndpoint, "")
	v.SetDefault(KeyUserAgent, "")

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	pause, err := pauseDuration(v.GetFloat64(KeyPause))
	if err != nil {
		return nil, err
	}

	timeout := v.GetInt(KeyTimeout)
	if int64(timeout) > maxSeconds {
		return nil, fmt.Errorf("%w: timeout of %d seconds", ErrOutOfRange, timeout)
	}

	cfg := &Config{
		Env:         v.GetString(KeyEnv),
		File:        v.GetString(KeyFile),
		Properties:  args,
		Country:     v.GetString(KeyCountry),
		Language:    v.GetString(KeyLanguage),
		Pause:       pause,
		Timeout:     time.Duration(timeout) * time.Second,
		Output:      v.GetString(KeyOutput),
		Provider:    strings.ToLower(v.GetString(KeyProvider)),
		MetricsFile: v.GetString(KeyMetricsFile),
		APIKey:      v.GetString(KeyAPIKey),
		Endpoint:    v.GetString(KeyEndpoint),
		UserAgent:   v.GetString(KeyUserAgent),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// pauseDuration converts fractional seconds, rejecting values a Duration
// cannot represent before the conversion wraps around.
func pauseDuration(seconds float64) (time.Duration, error) {
	switch {
	case math.IsNaN(seconds), seconds < 0:
		return 0, ErrInvalidPause
	case seconds >= float64(maxSeconds):
		return 0, fmt.Errorf("%w: pause of %g seconds", ErrOutOfRange, seconds)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// Validate checks the settings and normalizes the country and language codes.
func (c *Config) Validate() error {
	if c.Pause < 0 {
		return ErrInvalidPause
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	country, err := normalizeCountries(c.Country)
	if err != nil {
		return err
	}
	c.Country = country

	if c.Language != "" {
		tag, err := language.Parse(c.Language)
		if err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidLanguage, c.Language, err)
		}
		c.Language = tag.String()
	}

	switch c.Provider {
	case "nominatim":
	case "google":
		if c.APIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}

	return nil
}

func normalizeCountries(list string) (string, error) {
	if strings.TrimSpace(list) == "" {
		return "", nil
	}

	codes := strings.Split(list, ",")
	for i, code := range codes {
		code = strings.TrimSpace(code)
		region, err := language.ParseRegion(code)
		if err != nil {
			return "", fmt.Errorf("%w %q: %w", ErrInvalidCountry, code, err)
		}
		if !region.IsCountry() {
			return "", fmt.Errorf("%w %q: not a country", ErrInvalidCountry, code)
		}
		codes[i] = strings.ToLower(region.String())
	}

	return strings.Join(codes, ","), nil
}
