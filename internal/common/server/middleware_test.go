package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
)

func TestJWTAuthMiddleware(t *testing.T) {
	authCfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "autobridgehub",
		Audience:  "autobridgehub",
	}

	token, _, err := auth.GenerateAccessToken(authCfg, "u-1", auth.RoleAdmin, "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var got auth.AuthInfo
	var present bool
	h := JWTAuth(authCfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// 合法 token：ctx 中应有身份
	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !present {
		t.Fatalf("expected auth info in ctx")
	}
	if got.UserID != "u-1" || got.Role != auth.RoleAdmin {
		t.Fatalf("auth info mismatch: %+v", got)
	}

	// 坏 token：按匿名继续，绝不放进身份
	present = false
	req2 := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req2.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(httptest.NewRecorder(), req2)
	if present {
		t.Fatalf("invalid token must resolve to anonymous")
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	// 匿名 → 401
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/vehicles", nil)
	if _, ok := RequireAuth(w, r); ok {
		t.Fatalf("expected anonymous to be rejected")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// 非管理员 → 403
	w2 := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodPost, "/api/admin/requests", nil)
	r2 = r2.WithContext(auth.WithAuthInfo(r2.Context(), auth.AuthInfo{UserID: "u-1", Role: auth.RoleBuyer}))
	if _, ok := RequireAdmin(w2, r2); ok {
		t.Fatalf("expected buyer to be rejected from admin route")
	}
	if w2.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w2.Code)
	}

	// super_admin → 放行
	w3 := httptest.NewRecorder()
	r3 := httptest.NewRequest(http.MethodPost, "/api/admin/requests", nil)
	r3 = r3.WithContext(auth.WithAuthInfo(r3.Context(), auth.AuthInfo{UserID: "u-2", Role: auth.RoleSuperAdmin}))
	if _, ok := RequireAdmin(w3, r3); !ok {
		t.Fatalf("expected super_admin to pass admin check")
	}
}
