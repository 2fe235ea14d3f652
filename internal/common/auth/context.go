package auth

import "context"

type authContextKey struct{}

// AuthInfo 从 JWT 中解析出的最小用户信息（放入 ctx，供业务侧使用）。
type AuthInfo struct {
	UserID string // 用户 ID
	Role   string // 角色（RBAC）
	Email  string
}

// IsAdmin admin 与 super_admin 均视为管理员。
func (a AuthInfo) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

func (a AuthInfo) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// WithAuthInfo 把鉴权信息写入 ctx。
func WithAuthInfo(ctx context.Context, ai AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey{}, ai)
}

// FromContext 从 ctx 中取出鉴权信息；取不到即匿名。
func FromContext(ctx context.Context) (AuthInfo, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	if !ok || ai.UserID == "" {
		return AuthInfo{}, false
	}
	return ai, true
}
