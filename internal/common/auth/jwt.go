package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
	"github.com/golang-jwt/jwt/v5"
)

// 角色定义（RBAC）。super_admin 在权限判断上视为 admin 的超集。
const (
	RoleBuyer      = "buyer"
	RoleSeller     = "seller"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken 生成 HS256 JWT access token。
func GenerateAccessToken(cfg config.AuthConfig, subject, role, email string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("subject is empty")
	}
	if cfg.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("jwt_secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	expiresAt = now.Add(ttl)

	c := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			Audience:  audience(cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccessToken 解析并校验 access token。
// 全仓库唯一的 token 解码入口：签名/exp/nbf/iss/aud 任一不满足即返回错误，
// 调用方必须把错误当成“匿名”处理（fail closed），绝不能放行。
func ParseAccessToken(cfg config.AuthConfig, tokenStr string) (AuthInfo, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return AuthInfo{}, fmt.Errorf("token is empty")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return AuthInfo{}, fmt.Errorf("jwt_secret is empty")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || parsed == nil || !parsed.Valid {
		return AuthInfo{}, fmt.Errorf("invalid token: %w", err)
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return AuthInfo{}, fmt.Errorf("invalid issuer")
	}
	if cfg.Audience != "" && !audienceContains(claims.Audience, cfg.Audience) {
		return AuthInfo{}, fmt.Errorf("invalid audience")
	}

	return AuthInfo{
		UserID: claims.Subject,
		Role:   strings.ToLower(strings.TrimSpace(claims.Role)),
		Email:  claims.Email,
	}, nil
}

// BearerToken 从 `Authorization: Bearer <token>` 头中取出 token。
func BearerToken(header string) string {
	s := strings.TrimSpace(header)
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[len("bearer "):])
	}
	return ""
}

func audience(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" || len(aud) == 0 {
		return false
	}
	for _, v := range aud {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}
