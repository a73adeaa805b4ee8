package mpesa

import (
	"context"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/security"
	"github.com/goliatone/go-bankfeeds/transport"
)

type FactoryOptions struct {
	Certificates security.CertificateStore
	Callbacks    core.CallbackURLResolver
	Client       transport.Client
	Logger       core.Logger
	Now          func() time.Time
}

// Factory builds the mobile-money adapter. Certificates default to
// mpesa.certificate_dir on disk.
func Factory(cfg core.Config, opts FactoryOptions) core.AdapterFactory {
	certificates := opts.Certificates
	if certificates == nil {
		certificates = security.NewDirCertificateStore(cfg.MobileMoney.CertificateDir)
	}
	client := opts.Client
	if client == nil {
		client = transport.NewRESTAdapter(nil, cfg.RequestTimeout())
	}
	generator := security.NewSecurityCredentialGenerator(core.ProviderKeyMobileMoney, certificates)
	return func(_ context.Context, _ core.Account) (core.Adapter, error) {
		return New(Config{
			ProviderKey: core.ProviderKeyMobileMoney,
			MobileMoney: cfg.MobileMoney,
			Credentials: generator,
			Callbacks:   opts.Callbacks,
			Client:      client,
			Logger:      opts.Logger,
			Now:         opts.Now,
		})
	}
}
