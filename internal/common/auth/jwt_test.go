package auth

import (
	"testing"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "autobridgehub",
		Audience:  "autobridgehub",
	}

	token, exp, err := GenerateAccessToken(cfg, "u-1", RoleSeller, "s@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expected exp in future")
	}

	ai, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if ai.UserID != "u-1" {
		t.Fatalf("subject mismatch: %s", ai.UserID)
	}
	if ai.Role != RoleSeller {
		t.Fatalf("role mismatch: %s", ai.Role)
	}
}

func TestParseAccessTokenFailsClosed(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "test-secret", Issuer: "autobridgehub"}

	// 篡改/垃圾 token 一律报错
	if _, err := ParseAccessToken(cfg, "not-a-jwt"); err == nil {
		t.Fatalf("expected error for garbage token")
	}

	// 换 secret 签出来的 token 不能通过
	other := config.AuthConfig{JWTSecret: "other-secret", Issuer: "autobridgehub"}
	token, _, err := GenerateAccessToken(other, "u-1", RoleBuyer, "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected signature verification failure")
	}

	// 过期 token 不能通过（超过 30s leeway）
	now := time.Now()
	c := Claims{
		Role: RoleBuyer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestAuthInfoRoleChecks(t *testing.T) {
	if !(AuthInfo{Role: RoleSuperAdmin}).IsAdmin() {
		t.Fatalf("super_admin should count as admin")
	}
	if (AuthInfo{Role: RoleSeller}).IsAdmin() {
		t.Fatalf("seller is not admin")
	}
	if !(AuthInfo{Role: RoleSeller}).HasRole(RoleSeller, RoleAdmin) {
		t.Fatalf("HasRole should match seller")
	}
}
