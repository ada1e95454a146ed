package secrets

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
)

type countingTenants struct {
	repository.TenantRepository
	loads atomic.Int32
}

func (c *countingTenants) Load(ctx context.Context, tenantID string) (*domain.Document, error) {
	c.loads.Add(1)
	return c.TenantRepository.Load(ctx, tenantID)
}

type revealFixture struct {
	revealer *Revealer
	tenants  *countingTenants
}

func newRevealFixture(t *testing.T) revealFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	hash, err := crypto.HashPassword("correct horse")
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "user-1", TenantID: "user-1", Email: "a@example.com", PasswordHash: hash}))

	codec := NewCodec("process-secret", testLogger())
	_, err = NewSealedRepository(store, codec).Update(ctx, "user-1", func(doc *domain.Document) error {
		doc.Servers = append(doc.Servers, domain.Server{ID: "srv-1", Password: "hunter2"})
		doc.Settings.Whois.APIKey = "whois-key"
		return nil
	})
	require.NoError(t, err)

	tenants := &countingTenants{TenantRepository: store}
	return revealFixture{
		revealer: NewRevealer(store, tenants, codec, "jwt-secret", time.Minute, testLogger()),
		tenants:  tenants,
	}
}

func (f revealFixture) issue(t *testing.T) KeyGrant {
	t.Helper()
	grant, err := f.revealer.IssueKey(context.Background(), "user-1", "correct horse")
	require.NoError(t, err)
	return grant
}

func openDisclosure(t *testing.T, encodedKey string, d Disclosure) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	require.NoError(t, err)
	plain, err := crypto.Open(key, d.Envelope())
	require.NoError(t, err)
	return string(plain)
}

func TestIssueKeyRequiresCurrentPassword(t *testing.T) {
	f := newRevealFixture(t)
	_, err := f.revealer.IssueKey(context.Background(), "user-1", "wrong")
	assert.ErrorIs(t, err, ErrPasswordInvalid)
	_, err = f.revealer.IssueKey(context.Background(), "user-1", "")
	assert.ErrorIs(t, err, ErrPasswordInvalid)
	_, err = f.revealer.IssueKey(context.Background(), "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrPasswordInvalid)
}

func TestIssueKeyReturnsFreshKeys(t *testing.T) {
	f := newRevealFixture(t)
	first := f.issue(t)
	second := f.issue(t)
	assert.NotEqual(t, first.Key, second.Key)

	key, err := DecodeKey(first.Key)
	require.NoError(t, err)
	assert.Len(t, key, crypto.KeySize)
}

func TestRevealRoundTrip(t *testing.T) {
	f := newRevealFixture(t)
	g := f.issue(t)

	d, err := f.revealer.Reveal(context.Background(), "user-1", "user-1", FieldRef{Kind: KindServer, ID: "srv-1", Field: "password"}, g.Key, g.Grant)
	require.NoError(t, err)
	assert.False(t, d.Empty)
	assert.Len(t, d.IV, crypto.IVSize)
	assert.Len(t, d.Tag, crypto.TagSize)
	assert.Equal(t, "hunter2", openDisclosure(t, g.Key, d))

	d, err = f.revealer.Reveal(context.Background(), "user-1", "user-1", FieldRef{Kind: KindSettings, ID: "-", Field: "whoisApiKey"}, g.Key, g.Grant)
	require.NoError(t, err)
	assert.Equal(t, "whois-key", openDisclosure(t, g.Key, d))
}

func TestRevealEmptyField(t *testing.T) {
	f := newRevealFixture(t)
	g := f.issue(t)
	d, err := f.revealer.Reveal(context.Background(), "user-1", "user-1", FieldRef{Kind: KindServer, ID: "srv-1", Field: "sshPassword"}, g.Key, g.Grant)
	require.NoError(t, err)
	assert.True(t, d.Empty)
	assert.Nil(t, d.Data)
}

func TestRevealRejectsBeforeLoading(t *testing.T) {
	f := newRevealFixture(t)
	g := f.issue(t)
	ref := FieldRef{Kind: KindServer, ID: "srv-1", Field: "password"}
	ctx := context.Background()

	other, err := crypto.RandomKey()
	require.NoError(t, err)
	selfMade := base64.StdEncoding.EncodeToString(other)

	cases := []struct {
		name  string
		user  string
		ref   FieldRef
		key   string
		grant string
		want  error
	}{
		{"missing key", "user-1", ref, "", g.Grant, ErrRevealKeyRequired},
		{"short key", "user-1", ref, base64.StdEncoding.EncodeToString(make([]byte, 16)), g.Grant, ErrRevealKeyInvalid},
		{"garbage key", "user-1", ref, "!!!", g.Grant, ErrRevealKeyInvalid},
		{"missing grant", "user-1", ref, g.Key, "", ErrRevealGrantRequired},
		{"key without proof", "user-1", ref, selfMade, g.Grant, ErrRevealGrantInvalid},
		{"grant for another user", "user-2", ref, g.Key, g.Grant, ErrRevealGrantInvalid},
		{"unknown field", "user-1", FieldRef{Kind: KindServer, ID: "srv-1", Field: "name"}, g.Key, g.Grant, ErrFieldUnknown},
		{"unknown kind", "user-1", FieldRef{Kind: "domain", ID: "x", Field: "password"}, g.Key, g.Grant, ErrFieldUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.revealer.Reveal(ctx, tc.user, "user-1", tc.ref, tc.key, tc.grant)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, f.tenants.loads.Load())
}

func TestRevealUnknownEntity(t *testing.T) {
	f := newRevealFixture(t)
	g := f.issue(t)
	_, err := f.revealer.Reveal(context.Background(), "user-1", "user-1", FieldRef{Kind: KindServer, ID: "missing", Field: "password"}, g.Key, g.Grant)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
