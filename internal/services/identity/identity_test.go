package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"festival-backend/internal/status"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectID = "festival-test"

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) PublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := s[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown kid %s", kid)
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, mutate func(*claims)) string {
	t.Helper()
	now := time.Now()
	c := claims{
		Email: "fan@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    issuerPrefix + projectID,
			Audience:  jwt.ClaimStrings{projectID},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(&c)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestVerifier_Verify(t *testing.T) {
	key := newKey(t)
	v := NewVerifier(projectID, staticKeys{"k1": &key.PublicKey})
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		id, err := v.Verify(ctx, signToken(t, key, "k1", nil))
		require.NoError(t, err)
		assert.Equal(t, "user-123", id.UID)
		assert.Equal(t, "fan@example.com", id.Email)
	})

	tests := []struct {
		name  string
		token func() string
	}{
		{"empty", func() string { return "" }},
		{"garbage", func() string { return "not.a.token" }},
		{"expired", func() string {
			return signToken(t, key, "k1", func(c *claims) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			})
		}},
		{"no expiry", func() string {
			return signToken(t, key, "k1", func(c *claims) { c.ExpiresAt = nil })
		}},
		{"wrong audience", func() string {
			return signToken(t, key, "k1", func(c *claims) { c.Audience = jwt.ClaimStrings{"other"} })
		}},
		{"wrong issuer", func() string {
			return signToken(t, key, "k1", func(c *claims) { c.Issuer = "https://evil.example.com" })
		}},
		{"no subject", func() string {
			return signToken(t, key, "k1", func(c *claims) { c.Subject = "" })
		}},
		{"unknown kid", func() string { return signToken(t, key, "k2", nil) }},
		{"wrong key", func() string { return signToken(t, newKey(t), "k1", nil) }},
		{"hmac token", func() string {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"})
			tok.Header["kid"] = "k1"
			s, _ := tok.SignedString([]byte("secret"))
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(ctx, tt.token())
			assert.ErrorIs(t, err, status.ErrUnauthenticated)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
	assert.Equal(t, "", BearerToken("Bearer"))
}

func certPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestCertSource(t *testing.T) {
	key := newKey(t)
	cert := certPEM(t, key)
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		json.NewEncoder(w).Encode(map[string]string{"k1": cert})
	}))
	defer srv.Close()

	src := NewCertSource(srv.URL, srv.Client())
	now := time.Now()
	src.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := src.PublicKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(got))

	_, err = src.PublicKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = src.PublicKey(ctx, "missing")
	assert.Error(t, err)

	now = now.Add(11 * time.Minute)
	_, err = src.PublicKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	v := NewVerifier(projectID, src)
	id, err := v.Verify(ctx, signToken(t, key, "k1", nil))
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UID)
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 600*time.Second, maxAge("public, max-age=600"))
	assert.Equal(t, defaultCertTTL, maxAge(""))
	assert.Equal(t, defaultCertTTL, maxAge("max-age=bogus"))
}
