package checkbox

import (
	"net/http"
	"strings"
	"time"
)

const DefaultAPIURL = "https://api.checkbox.ua/api/"
const DefaultAPIVersion = "v1"
const DefaultClientName = "checkbox-api"
const DefaultClientVersion = "v1"
const DefaultTimeout = 25 * time.Second
const DefaultMaxRetries = 2
const DefaultRetryBackoff = 500 * time.Millisecond
const DefaultTokenTTL = 10 * time.Minute

// Config is fixed at client construction. Zero fields get defaults, so the
// zero value talks to the production API.
type Config struct {
	// APIURL must end with a slash, the version segment is appended to it.
	APIURL     string
	APIVersion string

	// LicenseKey of the cash register, sent as X-License-Key on shift calls.
	LicenseKey string

	ClientName    string
	ClientVersion string

	// Timeout applies per HTTP attempt, not per logical call.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after the first one for
	// network and 5xx failures. RetryBackoff doubles on each attempt.
	MaxRetries   int
	RetryBackoff time.Duration

	// TokenTTL is the expiry estimate used when the access token is not a
	// parseable JWT.
	TokenTTL time.Duration

	// HTTPClient overrides the default client (Timeout is not applied then).
	HTTPClient *http.Client
}

// Credentials of the cashier, used only to obtain a token.
type Credentials struct {
	Login    string `validate:"required"`
	Password string `validate:"required"`
}

func (c Config) withDefaults() Config {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(c.APIURL, "/") {
		c.APIURL += "/"
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.ClientName == "" {
		c.ClientName = DefaultClientName
	}
	if c.ClientVersion == "" {
		c.ClientVersion = DefaultClientVersion
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	return c
}
