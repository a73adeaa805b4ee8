package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	CredentialPayloadFormatJSONV1 = "bankfeeds_credentials_json"
	CredentialPayloadVersionV1    = 1
)

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	Format  string            `json:"format"`
	Version int               `json:"version"`
	Fields  map[string]string `json:"fields"`
}

func (c JSONCredentialCodec) Encode(credentials Credentials) ([]byte, error) {
	fields := make(map[string]string, len(credentials))
	for key, value := range credentials {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = value
	}
	encoded, err := json.Marshal(jsonCredentialPayload{
		Format:  c.Format(),
		Version: c.Version(),
		Fields:  fields,
	})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

// Decode accepts the versioned envelope and a flat JSON object of fields.
func (c JSONCredentialCodec) Decode(payload []byte) (Credentials, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Fields != nil {
		if decoded.Format != "" && decoded.Format != c.Format() {
			return nil, fmt.Errorf("core: unsupported credential payload format %q", decoded.Format)
		}
		if decoded.Version > c.Version() {
			return nil, fmt.Errorf("core: unsupported credential payload version %d", decoded.Version)
		}
		return trimCredentialFields(decoded.Fields), nil
	}
	flat := map[string]string{}
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return trimCredentialFields(flat), nil
}

func trimCredentialFields(fields map[string]string) Credentials {
	out := make(Credentials, len(fields))
	for key, value := range fields {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// SecretCredentialOpener decrypts an account credential blob with a
// SecretProvider and decodes it with a CredentialCodec.
type SecretCredentialOpener struct {
	Secrets SecretProvider
	Codec   CredentialCodec
}

func NewSecretCredentialOpener(secrets SecretProvider, codec CredentialCodec) *SecretCredentialOpener {
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	return &SecretCredentialOpener{Secrets: secrets, Codec: codec}
}

func (o *SecretCredentialOpener) Open(ctx context.Context, account Account) (Credentials, error) {
	if o == nil || o.Secrets == nil {
		return nil, NewConfigurationError("core: secret provider is required to open credentials", nil)
	}
	if len(account.Credentials) == 0 {
		return nil, NewConfigurationError("core: account credentials are required", map[string]any{
			"account_id": strings.TrimSpace(account.ID),
		})
	}
	plaintext, err := o.Secrets.Decrypt(ctx, account.Credentials)
	if err != nil {
		return nil, NewCredentialEnvelopeError("core: decrypt account credentials", err, map[string]any{
			"account_id": strings.TrimSpace(account.ID),
		})
	}
	defer zeroBytes(plaintext)
	codec := o.Codec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	credentials, err := codec.Decode(plaintext)
	if err != nil {
		return nil, NewCredentialEnvelopeError("core: decode account credentials", err, map[string]any{
			"account_id": strings.TrimSpace(account.ID),
		})
	}
	return credentials, nil
}

// SealCredentials encodes and encrypts credentials into an account blob.
func SealCredentials(ctx context.Context, secrets SecretProvider, codec CredentialCodec, credentials Credentials) ([]byte, error) {
	if secrets == nil {
		return nil, NewConfigurationError("core: secret provider is required to seal credentials", nil)
	}
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	plaintext, err := codec.Encode(credentials)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(plaintext)
	sealed, err := secrets.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, NewCredentialEnvelopeError("core: encrypt account credentials", err, nil)
	}
	return sealed, nil
}

func zeroBytes(value []byte) {
	for i := range value {
		value[i] = 0
	}
}

var _ CredentialOpener = (*SecretCredentialOpener)(nil)
