// Package config resolves the listener configuration.
//
// Values come from command-line flags, then MINECHAT_* environment
// variables (optionally seeded from a .env file), then defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pankaj/minechat/logger"
)

// EnvPrefix prefixes every environment variable, e.g. MINECHAT_HOST.
const EnvPrefix = "MINECHAT"

// Flag names double as viper keys.
const (
	KeyHost           = "host"
	KeyPort           = "port"
	KeyHistory        = "history"
	KeyConnectTimeout = "connect-timeout"
	KeyReadTimeout    = "read-timeout"
	KeyBackoffBase    = "backoff-base"
	KeyBackoffMax     = "backoff-max"
	KeyStampHistory   = "stamp-history"
	KeyReplay         = "replay"
	KeyLogLevel       = "log-level"
	KeyLogFile        = "log-file"
	KeyEnvFile        = "env-file"
)

// Defaults.
const (
	DefaultHost           = "minechat.dvmn.org"
	DefaultPort           = 5000
	DefaultHistory        = "minechat_history.txt"
	DefaultConnectTimeout = 10 * time.Second
	DefaultBackoffBase    = time.Second
	DefaultBackoffMax     = 30 * time.Second
	DefaultEnvFile        = ".env"
)

// Config is the resolved listener configuration. It is not modified after
// Load returns.
type Config struct {
	Host        string
	Port        int
	HistoryPath string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // 0 disables the idle timeout
	BackoffBase    time.Duration
	BackoffMax     time.Duration

	StampHistory bool
	Replay       int

	LogLevel string
	LogFile  string
}

// Addr returns host:port for dialing.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RegisterFlags adds the listener flags to flags.
// Integer options are registered as strings and parsed in base 10 by Load,
// so "05000" means 5000 whether it comes from a flag or the environment.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(KeyHost, DefaultHost, "chat server host [env MINECHAT_HOST]")
	flags.String(KeyPort, strconv.Itoa(DefaultPort), "chat server port [env MINECHAT_PORT]")
	flags.String(KeyHistory, DefaultHistory, "history file path [env MINECHAT_HISTORY]")
	flags.Duration(KeyConnectTimeout, DefaultConnectTimeout, "connect timeout")
	flags.Duration(KeyReadTimeout, 0, "reconnect when the server is silent this long (0 disables)")
	flags.Duration(KeyBackoffBase, DefaultBackoffBase, "first reconnect delay")
	flags.Duration(KeyBackoffMax, DefaultBackoffMax, "longest reconnect delay")
	flags.Bool(KeyStampHistory, false, "prefix history records with the receipt time")
	flags.String(KeyReplay, "0", "print the last N history records before connecting")
	flags.String(KeyLogLevel, "info", "log level (debug|info|warn|error)")
	flags.String(KeyLogFile, "", "write logs to file instead of stderr")
	flags.String(KeyEnvFile, DefaultEnvFile, "dotenv file to load before reading the environment")
}

// LoadDotenv copies variables from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load resolves the configuration from flags, environment and defaults.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, fmt.Errorf("binding flags: %w", err)
	}

	var errs []error
	intOf := func(key string) int {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}
	durationOf := func(key string) time.Duration {
		d, err := cast.ToDurationE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	boolOf := func(key string) bool {
		b, err := cast.ToBoolE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	cfg := Config{
		Host:           strings.TrimSpace(v.GetString(KeyHost)),
		Port:           intOf(KeyPort),
		HistoryPath:    v.GetString(KeyHistory),
		ConnectTimeout: durationOf(KeyConnectTimeout),
		ReadTimeout:    durationOf(KeyReadTimeout),
		BackoffBase:    durationOf(KeyBackoffBase),
		BackoffMax:     durationOf(KeyBackoffMax),
		StampHistory:   boolOf(KeyStampHistory),
		Replay:         intOf(KeyReplay),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFile:        v.GetString(KeyLogFile),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	if c.HistoryPath == "" {
		errs = append(errs, errors.New("history path must not be empty"))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("connect timeout must be positive"))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, errors.New("read timeout must not be negative"))
	}
	if c.BackoffBase <= 0 {
		errs = append(errs, errors.New("backoff base must be positive"))
	}
	if c.BackoffMax < c.BackoffBase {
		errs = append(errs, fmt.Errorf("backoff max %s is below backoff base %s", c.BackoffMax, c.BackoffBase))
	}
	if c.Replay < 0 {
		errs = append(errs, errors.New("replay count must not be negative"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
