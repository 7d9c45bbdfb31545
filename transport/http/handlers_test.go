package http

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delinked/delinked/adapters/store"
	"github.com/delinked/delinked/adapters/tokenizer"
	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/internal/eth"
	"github.com/delinked/delinked/service"
)

type apiFixture struct {
	router *gin.Engine
	key    *ecdsa.PrivateKey
	addr   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	tk := tokenizer.NewJWTTokenizer([]byte("test-secret"))
	authSvc := service.NewAuthService(st, tk, nil)
	profileSvc := service.NewProfileService(st)

	return &apiFixture{
		router: SetupRouter(authSvc, profileSvc, tk),
		key:    key,
		addr:   strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type profileBody struct {
	Profile ProfileResponse `json:"profile"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// login performs the full nonce/sign/authenticate exchange over HTTP.
func (f *apiFixture) login(t *testing.T, role string) AuthenticateResponse {
	t.Helper()

	rec := f.do(t, http.MethodGet, "/api/auth/nonce/"+f.addr, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode[NonceResponse](t, rec)

	sig, err := eth.SignPersonal(f.key, core.ChallengeMessage(nonce.Nonce))
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/auth/authenticate", "", AuthenticateRequest{
		Address:   f.addr,
		Signature: sig,
		Nonce:     nonce.Nonce,
		Role:      role,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	return decode[AuthenticateResponse](t, rec)
}

func TestOrganizerEndToEnd(t *testing.T) {
	f := newAPIFixture(t)

	// Nonce for a never-seen address flags a new user.
	rec := f.do(t, http.MethodGet, "/api/auth/nonce/"+f.addr, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode[NonceResponse](t, rec)
	assert.True(t, nonce.IsNewUser)
	assert.Empty(t, nonce.Role)

	auth := f.login(t, "organizer")
	assert.True(t, auth.IsNewUser)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, "organizer", auth.User.Role)

	// Fresh profile is empty and incomplete.
	rec = f.do(t, http.MethodGet, "/api/organizers/profile", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[profileBody](t, rec)
	assert.False(t, body.Profile.Completed)
	assert.Empty(t, body.Profile.Name)

	// Filling the required fields completes it.
	rec = f.do(t, http.MethodPut, "/api/organizers/profile", auth.Token, ProfileUpdateRequest{
		Name:             "Alice",
		OrganizationName: "Acme",
		Email:            "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[profileBody](t, rec)
	assert.True(t, body.Profile.Completed)
	require.NotNil(t, body.Profile.OrganizationName)
	assert.Equal(t, "Acme", *body.Profile.OrganizationName)
	assert.Nil(t, body.Profile.Experience, "organizer responses carry no candidate fields")

	// /auth/me returns the same identity.
	rec = f.do(t, http.MethodGet, "/api/auth/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User UserResponse `json:"user"`
	}](t, rec)
	assert.Equal(t, auth.User, me.User)
}

func TestRoleGuard(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.login(t, "candidate")

	rec := f.do(t, http.MethodGet, "/api/organizers/profile", auth.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/candidates/profile", auth.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthErrors(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("bad address on nonce", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/nonce/not-an-address", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/authenticate", "", gin.H{"address": f.addr})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing role for new user", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/nonce/"+f.addr, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		nonce := decode[NonceResponse](t, rec)

		sig, err := eth.SignPersonal(f.key, core.ChallengeMessage(nonce.Nonce))
		require.NoError(t, err)
		rec = f.do(t, http.MethodPost, "/api/auth/authenticate", "", AuthenticateRequest{
			Address: f.addr, Signature: sig, Nonce: nonce.Nonce,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("forged signature", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/api/auth/nonce/"+f.addr, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		nonce := decode[NonceResponse](t, rec)

		sig, err := eth.SignPersonal(other, core.ChallengeMessage(nonce.Nonce))
		require.NoError(t, err)
		rec = f.do(t, http.MethodPost, "/api/auth/authenticate", "", AuthenticateRequest{
			Address: f.addr, Signature: sig, Nonce: nonce.Nonce, Role: "candidate",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestTokenGuard(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("no token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token from another secret", func(t *testing.T) {
		otherTk := tokenizer.NewJWTTokenizer([]byte("other-secret"))
		now := time.Now()
		forged, err := otherTk.SessionToToken(&core.Session{
			ID: "x", UserID: "y", Address: f.addr, Role: core.RoleCandidate,
			IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		})
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/api/auth/me", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
