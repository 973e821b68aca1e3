package embed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Environment selects the provider's sandbox or production checkout
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

var (
	// ErrInvalidEnvironment is returned for environments other than sandbox and production
	ErrInvalidEnvironment = errors.New("environment must be sandbox or production")
	// ErrMissingClientToken is returned when no client-side provider token is configured
	ErrMissingClientToken = errors.New("client token is required")
	// ErrInvalidBaseURL is returned when the saazpay base URL is missing or not absolute
	ErrInvalidBaseURL = errors.New("base URL must be an absolute http(s) URL")
)

// ProviderConfig is what a host page needs to embed saazpay and open the
// provider checkout
type ProviderConfig struct {
	Environment Environment `json:"environment" yaml:"environment"`
	ClientToken string      `json:"clientToken" yaml:"client_token"`
	BaseURL     string      `json:"baseUrl" yaml:"base_url"`
	SuccessURL  string      `json:"successUrl,omitempty" yaml:"success_url"`
}

// Validate checks the configuration
func (c ProviderConfig) Validate() error {
	switch c.Environment {
	case EnvironmentSandbox, EnvironmentProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.Environment)
	}
	if strings.TrimSpace(c.ClientToken) == "" {
		return ErrMissingClientToken
	}
	if err := checkAbsoluteURL(c.BaseURL); err != nil {
		return err
	}
	if c.SuccessURL != "" {
		if _, err := url.Parse(c.SuccessURL); err != nil {
			return fmt.Errorf("invalid success URL: %w", err)
		}
	}
	return nil
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	return nil
}
