package secrets

import (
	"log/slog"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
)

// Codec seals secret fields at rest with a single process-wide key.
type Codec struct {
	key    []byte
	logger *slog.Logger
}

// NewCodec derives the at-rest key from secret.
func NewCodec(secret string, logger *slog.Logger) *Codec {
	return &Codec{key: crypto.DeriveKey(secret), logger: logger}
}

// Wrap seals plaintext. Empty input stays empty, and a value that already
// opens under this codec's key is returned as is. Anything else is sealed,
// including strings that merely look like an envelope.
func (c *Codec) Wrap(plaintext string) string {
	if plaintext == "" || c.sealed(plaintext) {
		return plaintext
	}
	env, err := crypto.Seal(c.key, []byte(plaintext))
	if err != nil {
		c.logger.Error("seal secret", "error", err)
		return ""
	}
	return env.String()
}

// Unwrap returns the plaintext for a stored value. Legacy plaintext passes
// through unchanged; anything that fails to open yields "".
func (c *Codec) Unwrap(value string) string {
	plain, _ := c.unwrap(value)
	return plain
}

func (c *Codec) sealed(value string) bool {
	if !crypto.IsEnvelope(value) {
		return false
	}
	_, err := c.open(value)
	return err == nil
}

func (c *Codec) open(value string) ([]byte, error) {
	if !crypto.IsEnvelope(value) {
		return []byte(value), nil
	}
	env, err := crypto.ParseEnvelope(value)
	if err != nil {
		return nil, err
	}
	return crypto.Open(c.key, env)
}

func (c *Codec) unwrap(value string) (string, bool) {
	if value == "" {
		return "", true
	}
	plain, err := c.open(value)
	if err != nil {
		c.logger.Warn("open secret", "error", err)
		return "", false
	}
	return string(plain), true
}

// OpenDocument unwraps every secret field in doc in place.
func (c *Codec) OpenDocument(doc *domain.Document) {
	for _, f := range fields(doc) {
		*f.value, _ = c.unwrap(*f.value)
	}
}

// openForUpdate unwraps the secret fields of doc in place. Fields that fail
// to open keep their stored form and are returned keyed by field path.
func (c *Codec) openForUpdate(doc *domain.Document) map[string]string {
	var failed map[string]string
	for _, f := range fields(doc) {
		stored := *f.value
		plain, ok := c.unwrap(stored)
		if !ok {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[f.path] = stored
			continue
		}
		*f.value = plain
	}
	return failed
}

// sealForStore wraps every secret field in doc, leaving untouched any field
// in failed whose stored form is unchanged.
func (c *Codec) sealForStore(doc *domain.Document, failed map[string]string) {
	for _, f := range fields(doc) {
		if stored, ok := failed[f.path]; ok && *f.value == stored {
			continue
		}
		*f.value = c.Wrap(*f.value)
	}
}

type field struct {
	path  string
	value *string
}

func fields(doc *domain.Document) []field {
	if doc == nil {
		return nil
	}
	out := make([]field, 0, 3*len(doc.Servers)+len(doc.Providers)+3)
	for i := range doc.Servers {
		srv := &doc.Servers[i]
		out = append(out,
			field{path: "server/" + srv.ID + "/password", value: &srv.Password},
			field{path: "server/" + srv.ID + "/sshPassword", value: &srv.SSHPassword},
			field{path: "server/" + srv.ID + "/providerPassword", value: &srv.ProviderPassword},
		)
	}
	for i := range doc.Providers {
		p := &doc.Providers[i]
		out = append(out, field{path: "provider/" + p.ID + "/password", value: &p.Password})
	}
	s := &doc.Settings
	out = append(out,
		field{path: "settings/whoisApiKey", value: &s.Whois.APIKey},
		field{path: "settings/barkKey", value: &s.Notifications.Bark.Key},
		field{path: "settings/smtpPassword", value: &s.Notifications.SMTP.Password},
	)
	return out
}
