package admin_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kroeg/cellar/internal/admin"
)

type fakeSource struct {
	alive      bool
	cacheSize  int
	queueDepth int
	queueErr   error
}

func (f fakeSource) Alive() bool { return f.alive }
func (f fakeSource) CacheSize() int { return f.cacheSize }
func (f fakeSource) QueueDepth() (int, error) { return f.queueDepth, f.queueErr }

func TestHealthz_Alive(t *testing.T) {
	srv := admin.NewServer(fakeSource{alive: true})
	router := admin.NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHealthz_NotAlive(t *testing.T) {
	srv := admin.NewServer(fakeSource{alive: false})
	router := admin.NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestStats_Unauthenticated_WhenNoPubKey(t *testing.T) {
	srv := admin.NewServer(fakeSource{alive: true, cacheSize: 3, queueDepth: 5})
	router := admin.NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cache_size"].(float64) != 3 || body["queue_depth"].(float64) != 5 {
		t.Errorf("got %+v", body)
	}
}

func TestStats_QueueDepthError(t *testing.T) {
	srv := admin.NewServer(fakeSource{alive: true, queueErr: errors.New("boom")})
	router := admin.NewRouter(srv, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestStats_RequiresBearerToken_WhenPubKeySet(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	srv := admin.NewServer(fakeSource{alive: true})
	router := admin.NewRouter(srv, &priv.PublicKey)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a token", w.Code)
	}
}

func TestStats_ValidToken_Succeeds(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	srv := admin.NewServer(fakeSource{alive: true, cacheSize: 1, queueDepth: 2})
	router := admin.NewRouter(srv, &priv.PublicKey)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}
