package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
)

// SecurityCredentialGenerator encrypts an initiator password with the
// provider's public certificate. Output is computed per call.
type SecurityCredentialGenerator struct {
	ProviderKey  string
	Certificates CertificateStore
	Random       io.Reader
}

func NewSecurityCredentialGenerator(providerKey string, certificates CertificateStore) *SecurityCredentialGenerator {
	return &SecurityCredentialGenerator{
		ProviderKey:  strings.TrimSpace(providerKey),
		Certificates: certificates,
	}
}

// Generate returns base64(RSA-PKCS1v15(plaintext)). Every failure is a
// credential envelope error with an empty result.
func (g *SecurityCredentialGenerator) Generate(ctx context.Context, environment, plaintext string) (string, error) {
	if g == nil || g.Certificates == nil {
		return "", core.NewCredentialEnvelopeError("security: certificate store is required", nil, nil)
	}
	environment = strings.ToLower(strings.TrimSpace(environment))
	metadata := map[string]any{
		"provider_key": g.ProviderKey,
		"environment":  environment,
		"certificate":  CertificateName(g.ProviderKey, environment),
	}
	if plaintext == "" {
		return "", core.NewCredentialEnvelopeError("security: initiator password is required", nil, metadata)
	}

	raw, err := g.Certificates.Certificate(ctx, g.ProviderKey, environment)
	if err != nil {
		return "", core.NewCredentialEnvelopeError("security: load provider certificate", err, metadata)
	}
	publicKey, err := ParseRSAPublicKey(raw)
	if err != nil {
		return "", core.NewCredentialEnvelopeError("security: parse provider certificate", err, metadata)
	}

	random := g.Random
	if random == nil {
		random = rand.Reader
	}
	encrypted, err := rsa.EncryptPKCS1v15(random, publicKey, []byte(plaintext))
	if err != nil {
		return "", core.NewCredentialEnvelopeError("security: encrypt initiator password", err, metadata)
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// ParseRSAPublicKey reads an X.509 certificate in PEM or DER form and returns
// its RSA public key.
func ParseRSAPublicKey(raw []byte) (*rsa.PublicKey, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("security: certificate is empty")
	}
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("security: parse certificate: %w", err)
	}
	publicKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("security: certificate does not contain an RSA public key")
	}
	return publicKey, nil
}
