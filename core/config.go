package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type FetchFailurePolicy string

const (
	// FetchFailureSwallow turns a failed fetch into a zero-progress pass.
	FetchFailureSwallow FetchFailurePolicy = "swallow"
	// FetchFailureEscalate returns the FetchFailure to the caller.
	FetchFailureEscalate FetchFailurePolicy = "escalate"
)

const (
	DefaultLookbackDays = 30
	DefaultHTTPTimeout  = 30 * time.Second
)

type RESTConfig struct {
	Timezone string `koanf:"timezone" mapstructure:"timezone"`
}

type BankConfig struct {
	BaseURL  string `koanf:"base_url" mapstructure:"base_url"`
	Timezone string `koanf:"timezone" mapstructure:"timezone"`
}

type MobileMoneyConfig struct {
	ResultURL         string `koanf:"result_url" mapstructure:"result_url"`
	TimeoutURL        string `koanf:"timeout_url" mapstructure:"timeout_url"`
	StatusResultURL   string `koanf:"status_result_url" mapstructure:"status_result_url"`
	CertificateDir    string `koanf:"certificate_dir" mapstructure:"certificate_dir"`
	Remarks           string `koanf:"remarks" mapstructure:"remarks"`
	SandboxBaseURL    string `koanf:"sandbox_base_url" mapstructure:"sandbox_base_url"`
	ProductionBaseURL string `koanf:"production_base_url" mapstructure:"production_base_url"`
}

type Config struct {
	ServiceName        string                `koanf:"service_name" mapstructure:"service_name"`
	Environment        string                `koanf:"environment" mapstructure:"environment"`
	LookbackDays       int                   `koanf:"lookback_days" mapstructure:"lookback_days"`
	HTTPTimeout        time.Duration         `koanf:"http_timeout" mapstructure:"http_timeout"`
	FetchFailurePolicy FetchFailurePolicy    `koanf:"fetch_failure_policy" mapstructure:"fetch_failure_policy"`
	REST               RESTConfig            `koanf:"rest" mapstructure:"rest"`
	Banks              map[string]BankConfig `koanf:"banks" mapstructure:"banks"`
	MobileMoney        MobileMoneyConfig     `koanf:"mpesa" mapstructure:"mpesa"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:        "bankfeeds",
		Environment:        "development",
		LookbackDays:       DefaultLookbackDays,
		HTTPTimeout:        DefaultHTTPTimeout,
		FetchFailurePolicy: FetchFailureSwallow,
		REST:               RESTConfig{Timezone: "UTC"},
		Banks:              map[string]BankConfig{},
		MobileMoney: MobileMoneyConfig{
			Remarks:           "Balance check",
			SandboxBaseURL:    "https://sandbox.safaricom.co.ke",
			ProductionBaseURL: "https://api.safaricom.co.ke",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "development", EnvironmentSandbox, EnvironmentProduction:
	default:
		return fmt.Errorf("core: environment %q is invalid", c.Environment)
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("core: lookback_days must be zero or positive")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("core: http_timeout must be zero or positive")
	}
	switch c.FetchFailurePolicy {
	case "", FetchFailureSwallow, FetchFailureEscalate:
	default:
		return fmt.Errorf("core: fetch_failure_policy %q is invalid", c.FetchFailurePolicy)
	}
	if tz := strings.TrimSpace(c.REST.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("core: rest.timezone is invalid: %w", err)
		}
	}
	for key, bank := range c.Banks {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("core: banks key is required")
		}
		if strings.TrimSpace(key) == ProviderKeyMobileMoney || strings.TrimSpace(key) == ProviderKeyGenericREST {
			return fmt.Errorf("core: banks key %q is reserved", key)
		}
		if err := validateAbsoluteURL("banks."+key+".base_url", bank.BaseURL, true); err != nil {
			return err
		}
		if tz := strings.TrimSpace(bank.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("core: banks.%s.timezone is invalid: %w", key, err)
			}
		}
	}
	for name, value := range map[string]string{
		"mpesa.result_url":          c.MobileMoney.ResultURL,
		"mpesa.timeout_url":         c.MobileMoney.TimeoutURL,
		"mpesa.status_result_url":   c.MobileMoney.StatusResultURL,
		"mpesa.sandbox_base_url":    c.MobileMoney.SandboxBaseURL,
		"mpesa.production_base_url": c.MobileMoney.ProductionBaseURL,
	} {
		if err := validateAbsoluteURL(name, value, false); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Lookback() time.Duration {
	days := c.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c Config) RequestTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return DefaultHTTPTimeout
	}
	return c.HTTPTimeout
}

func (c Config) FailurePolicy() FetchFailurePolicy {
	if c.FetchFailurePolicy == "" {
		return FetchFailureSwallow
	}
	return c.FetchFailurePolicy
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

func validateAbsoluteURL(name, value string, required bool) error {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return fmt.Errorf("core: %s is required", name)
		}
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: %s must be an absolute url", name)
	}
	return nil
}
