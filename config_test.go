package checkbox

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.APIVersion != DefaultAPIVersion {
		t.Errorf("APIVersion = %q, want %q", cfg.APIVersion, DefaultAPIVersion)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.TokenTTL != DefaultTokenTTL {
		t.Errorf("TokenTTL = %v, want %v", cfg.TokenTTL, DefaultTokenTTL)
	}
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		APIURL:       "https://sandbox.example.test/api",
		Timeout:      3 * time.Second,
		MaxRetries:   5,
		RetryBackoff: 10 * time.Millisecond,
	}.withDefaults()

	if cfg.APIURL != "https://sandbox.example.test/api/" {
		t.Errorf("APIURL = %q, want trailing slash appended", cfg.APIURL)
	}
	if cfg.Timeout != 3*time.Second || cfg.MaxRetries != 5 || cfg.RetryBackoff != 10*time.Millisecond {
		t.Errorf("explicit values were overridden: %+v", cfg)
	}
}

func TestConfigNegativeRetriesClamped(t *testing.T) {
	cfg := Config{MaxRetries: -1}.withDefaults()
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
}
