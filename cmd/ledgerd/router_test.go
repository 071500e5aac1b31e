package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/config"
	"github.com/jmerrifield20/recordchain/internal/identity"
	"github.com/jmerrifield20/recordchain/internal/ledger"
	"github.com/jmerrifield20/recordchain/internal/store/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           5000,
			CORSOrigins:    []string{"http://localhost:3000"},
			MaxUploadBytes: 1 << 20,
		},
		Ledger: config.LedgerConfig{Store: config.StoreMemory},
	}
}

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New(memory.New(), zap.NewNop())
	if err := l.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return l
}

func upload(t *testing.T, r http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "labs.csv")
	fw.Write([]byte("hb,13.2"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_uploadThenChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := testLedger(t)
	r := newRouter(context.Background(), testConfig(), l, nil, zap.NewNop())

	if w := upload(t, r, ""); w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}

	w := get(r, "/blockchain")
	if w.Code != http.StatusOK {
		t.Fatalf("blockchain: %d", w.Code)
	}
	var blocks []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &blocks); err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Errorf("chain length = %d, want 2", len(blocks))
	}

	if w := get(r, "/api/v1/ledger/verify"); !bytes.Contains(w.Body.Bytes(), []byte(`"valid":true`)) {
		t.Errorf("verify: %s", w.Body.String())
	}
	if w := get(r, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz: %d", w.Code)
	}
	if w := get(r, "/metrics"); w.Code != http.StatusOK {
		t.Errorf("metrics: %d", w.Code)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
}

func TestRouter_authEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens, err := identity.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "ledgerd-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	r := newRouter(context.Background(), testConfig(), testLedger(t), tokens, zap.NewNop())

	if w := upload(t, r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous upload: %d, want 401", w.Code)
	}
	tok, _ := tokens.Issue("ward-7", []string{identity.ScopeUpload})
	if w := upload(t, r, tok); w.Code != http.StatusOK {
		t.Errorf("authorised upload: %d %s", w.Code, w.Body.String())
	}
	// Reads stay public.
	if w := get(r, "/blockchain"); w.Code != http.StatusOK {
		t.Errorf("blockchain with auth enabled: %d", w.Code)
	}
}

func TestContainsWildcard(t *testing.T) {
	if !containsWildcard([]string{"http://a", " * "}) {
		t.Error("expected wildcard")
	}
	if containsWildcard([]string{"http://a"}) {
		t.Error("unexpected wildcard")
	}
}
