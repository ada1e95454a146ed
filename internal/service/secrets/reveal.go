package secrets

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
	jwtpkg "github.com/rikouu/serdo-v2-sub001/pkg/jwt"
)

var (
	// ErrRevealKeyRequired indicates the request carried no reveal key.
	ErrRevealKeyRequired = errors.New("reveal key required")
	// ErrRevealKeyInvalid indicates the reveal key is not 32 bytes of base64.
	ErrRevealKeyInvalid = errors.New("reveal key must be 32 bytes")
	// ErrRevealGrantRequired indicates the request carried no reveal grant.
	ErrRevealGrantRequired = errors.New("reveal grant required")
	// ErrRevealGrantInvalid indicates the grant is expired, forged or bound to another key or user.
	ErrRevealGrantInvalid = errors.New("reveal grant invalid")
	// ErrPasswordInvalid indicates the current-password proof failed.
	ErrPasswordInvalid = errors.New("current password invalid")
	// ErrFieldUnknown indicates the kind or field is not a revealable secret.
	ErrFieldUnknown = errors.New("unknown secret field")
	// ErrEntityNotFound indicates the referenced server, provider or tenant does not exist.
	ErrEntityNotFound = errors.New("entity not found")
)

// Kinds of entity that carry secret fields.
const (
	KindServer   = "server"
	KindProvider = "provider"
	KindSettings = "settings"
)

var revealable = map[string]map[string]bool{
	KindServer:   {"password": true, "sshPassword": true, "providerPassword": true},
	KindProvider: {"password": true},
	KindSettings: {"whoisApiKey": true, "barkKey": true, "smtpPassword": true},
}

// FieldRef addresses a single secret field. ID is ignored for settings.
type FieldRef struct {
	Kind  string
	ID    string
	Field string
}

func (f FieldRef) path() string {
	if f.Kind == KindSettings {
		return KindSettings + "/" + f.Field
	}
	return f.Kind + "/" + f.ID + "/" + f.Field
}

// KeyGrant is returned once from IssueKey. The server keeps no copy of Key.
type KeyGrant struct {
	Key       string        `json:"revealKey"`
	Grant     string        `json:"grant"`
	ExpiresIn time.Duration `json:"-"`
}

// Disclosure is a secret re-encrypted under the caller's reveal key.
type Disclosure struct {
	Empty bool   `json:"empty,omitempty"`
	IV    []byte `json:"iv,omitempty"`
	Tag   []byte `json:"tag,omitempty"`
	Data  []byte `json:"data,omitempty"`
}

// Envelope converts the disclosure back into a crypto envelope.
func (d Disclosure) Envelope() crypto.Envelope {
	return crypto.Envelope{IV: d.IV, Tag: d.Tag, Ciphertext: d.Data}
}

// Revealer implements the two-step disclosure protocol.
type Revealer struct {
	users       repository.UserRepository
	tenants     repository.TenantRepository
	codec       *Codec
	grantSecret string
	grantTTL    time.Duration
	logger      *slog.Logger
}

// NewRevealer constructs a Revealer. tenants must be the raw store so stored
// envelopes are read as persisted.
func NewRevealer(users repository.UserRepository, tenants repository.TenantRepository, codec *Codec, grantSecret string, grantTTL time.Duration, logger *slog.Logger) *Revealer {
	return &Revealer{
		users:       users,
		tenants:     tenants,
		codec:       codec,
		grantSecret: grantSecret,
		grantTTL:    grantTTL,
		logger:      logger,
	}
}

// IssueKey verifies currentPassword and hands out a fresh reveal key together
// with a grant bound to its hash.
func (r *Revealer) IssueKey(ctx context.Context, userID, currentPassword string) (KeyGrant, error) {
	if currentPassword == "" {
		return KeyGrant{}, ErrPasswordInvalid
	}
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return KeyGrant{}, ErrPasswordInvalid
		}
		return KeyGrant{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		r.logger.Warn("reveal key denied", "user_id", userID)
		return KeyGrant{}, ErrPasswordInvalid
	}
	key, err := crypto.RandomKey()
	if err != nil {
		return KeyGrant{}, err
	}
	grant, err := jwtpkg.GenerateRevealGrant(userID, keyHash(key), r.grantSecret, r.grantTTL)
	if err != nil {
		return KeyGrant{}, err
	}
	r.logger.Info("reveal key issued", "user_id", userID)
	return KeyGrant{
		Key:       base64.StdEncoding.EncodeToString(key),
		Grant:     grant,
		ExpiresIn: r.grantTTL,
	}, nil
}

// DecodeKey parses a base64 reveal key and enforces its length.
func DecodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrRevealKeyRequired
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil || len(key) != crypto.KeySize {
		return nil, ErrRevealKeyInvalid
	}
	return key, nil
}

// Reveal re-encrypts one stored secret under the caller's key. Every check on
// the key, grant and field happens before the tenant document is read.
func (r *Revealer) Reveal(ctx context.Context, userID, tenantID string, ref FieldRef, encodedKey, grant string) (Disclosure, error) {
	key, err := DecodeKey(encodedKey)
	if err != nil {
		return Disclosure{}, err
	}
	if strings.TrimSpace(grant) == "" {
		return Disclosure{}, ErrRevealGrantRequired
	}
	claims, err := jwtpkg.ParseRevealGrant(strings.TrimSpace(grant), r.grantSecret)
	if err != nil || claims.UserID != userID ||
		subtle.ConstantTimeCompare([]byte(claims.KeyHash), []byte(keyHash(key))) != 1 {
		return Disclosure{}, ErrRevealGrantInvalid
	}
	allowed, ok := revealable[ref.Kind]
	if !ok || !allowed[ref.Field] {
		return Disclosure{}, ErrFieldUnknown
	}
	if ref.Kind != KindSettings && ref.ID == "" {
		return Disclosure{}, ErrEntityNotFound
	}

	doc, err := r.tenants.Load(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Disclosure{}, ErrEntityNotFound
		}
		return Disclosure{}, err
	}
	var stored *string
	want := ref.path()
	for _, f := range fields(doc) {
		if f.path == want {
			stored = f.value
			break
		}
	}
	if stored == nil {
		return Disclosure{}, ErrEntityNotFound
	}

	plain, ok := r.codec.unwrap(*stored)
	if !ok || plain == "" {
		return Disclosure{Empty: true}, nil
	}
	env, err := crypto.Seal(key, []byte(plain))
	if err != nil {
		return Disclosure{}, err
	}
	r.logger.Info("secret revealed", "user_id", userID, "kind", ref.Kind, "field", ref.Field)
	return Disclosure{IV: env.IV, Tag: env.Tag, Data: env.Ciphertext}, nil
}

func keyHash(key []byte) string {
	sum := sha256.Sum256(key)
	return base64.RawStdEncoding.EncodeToString(sum[:])
}
