package authmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func protected(t *testing.T) (http.Handler, *string) {
	t.Helper()

	var gotSubject string
	h := JWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &gotSubject
}

func TestJWT_ValidToken(t *testing.T) {
	t.Parallel()

	token, err := Issue(secret, "admin@campus.edu", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	h, gotSubject := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if *gotSubject != "admin@campus.edu" {
		t.Errorf("subject = %q", *gotSubject)
	}
}

func TestJWT_MissingHeader(t *testing.T) {
	t.Parallel()

	h, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := Issue([]byte("other-secret"), "admin@campus.edu", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	h, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	t.Parallel()

	token, err := Issue(secret, "admin@campus.edu", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	h, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWT_WrongRole(t *testing.T) {
	t.Parallel()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "viewer@campus.edu",
		"role": "viewer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	h, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWT_AlgorithmConfusion(t *testing.T) {
	t.Parallel()

	// An unsigned token must never pass, whatever its claims say.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "admin@campus.edu",
		"role": roleAdmin,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	h, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
