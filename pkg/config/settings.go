// Package config loads the process settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

// Environment variable names.
const (
	EnvAPIURL           = "ZBX_API_URL"
	EnvUser             = "ZBX_USER"
	EnvPassword         = "ZBX_PASS"
	EnvAuthMode         = "ZBX_AUTH_MODE"
	EnvProxyName        = "ZBX_PROXY_NAME"
	EnvLang             = "ZBX_LANG"
	EnvWaitTimeout      = "WAIT_TIMEOUT"
	EnvWaitInterval     = "WAIT_INTERVAL"
	EnvSNMPAuthPass     = "SNMP_AUTH_PASS"
	EnvSNMPPrivPass     = "SNMP_PRIV_PASS"
	EnvTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "TELEGRAM_CHAT_ID"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
)

// Defaults.
const (
	DefaultAPIURL       = "http://zbx-web:8080/api_jsonrpc.php"
	DefaultProxyName    = "zbx-proxy-1"
	DefaultAuthMode     = "body"
	DefaultWaitTimeout  = 600 * time.Second
	DefaultWaitInterval = 5 * time.Second
)

// Settings holds everything read from the environment. It is also the data
// passed to catalog templates, so field names are part of the catalog syntax.
type Settings struct {
	APIURL    string `validate:"required,url"`
	Username  string `validate:"required"`
	Password  string `validate:"required"`
	AuthMode  string `validate:"oneof=body header"`
	ProxyName string `validate:"required"`

	// Lang is the UI language of the API user; empty leaves it alone.
	Lang string

	WaitTimeout  time.Duration `validate:"gt=0"`
	WaitInterval time.Duration `validate:"gt=0"`

	SNMPAuthPass string
	SNMPPrivPass string

	TelegramBotToken string
	TelegramChatID   string

	LogLevel  string `validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat string `validate:"omitempty,oneof=console json"`
}

// LookupFunc reads one variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv builds and validates Settings.
func FromEnv(lookup LookupFunc) (*Settings, error) {
	s, err := Parse(lookup)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse reads Settings without validating them. Commands that never call the
// API use it so that credentials stay optional.
func Parse(lookup LookupFunc) (*Settings, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	s := &Settings{
		APIURL:           get(EnvAPIURL, DefaultAPIURL),
		Username:         get(EnvUser, ""),
		Password:         get(EnvPassword, ""),
		AuthMode:         strings.ToLower(get(EnvAuthMode, DefaultAuthMode)),
		ProxyName:        get(EnvProxyName, DefaultProxyName),
		Lang:             get(EnvLang, ""),
		SNMPAuthPass:     get(EnvSNMPAuthPass, ""),
		SNMPPrivPass:     get(EnvSNMPPrivPass, ""),
		TelegramBotToken: get(EnvTelegramBotToken, ""),
		TelegramChatID:   get(EnvTelegramChatID, ""),
		LogLevel:         strings.ToLower(get(EnvLogLevel, "")),
		LogFormat:        strings.ToLower(get(EnvLogFormat, "")),
	}

	var err error
	if s.WaitTimeout, err = seconds(EnvWaitTimeout, get(EnvWaitTimeout, ""), DefaultWaitTimeout); err != nil {
		return nil, err
	}
	if s.WaitInterval, err = seconds(EnvWaitInterval, get(EnvWaitInterval, ""), DefaultWaitInterval); err != nil {
		return nil, err
	}
	return s, nil
}

// seconds parses a plain number of seconds or a Go duration.
func seconds(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, engine.NewValidationError(fmt.Sprintf("%s: invalid duration %q", key, raw), err)
	}
	return d, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return engine.NewValidationError("invalid settings", err)
	}
	return nil
}

// NotificationsEnabled reports whether both Telegram settings are present.
func (s *Settings) NotificationsEnabled() bool {
	return s.TelegramBotToken != "" && s.TelegramChatID != ""
}

// Redacted returns a copy safe to log.
func (s Settings) Redacted() Settings {
	for _, f := range []*string{&s.Password, &s.SNMPAuthPass, &s.SNMPPrivPass, &s.TelegramBotToken} {
		if *f != "" {
			*f = "****"
		}
	}
	return s
}
