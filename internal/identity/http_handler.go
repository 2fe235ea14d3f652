package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/server"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler 注册 / 登录 / 当前用户。
type Handler struct {
	repo    *Repo
	authCfg config.AuthConfig
}

func NewHandler(repo *Repo, authCfg config.AuthConfig) *Handler {
	return &Handler{repo: repo, authCfg: authCfg}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/me", h.handleMe)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // buyer / seller，默认 buyer
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

// POST /api/auth/register
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in registerRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		server.WriteError(w, errs.Invalid("email and password are required"))
		return
	}

	// 注册只允许 buyer / seller；管理员角色不能自助注册
	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch role {
	case "":
		role = auth.RoleBuyer
	case auth.RoleBuyer, auth.RoleSeller:
	default:
		server.WriteError(w, errs.Invalid("role must be buyer or seller"))
		return
	}

	if _, err := h.repo.FindByEmail(r.Context(), email); err == nil {
		server.WriteError(w, errs.Invalid("email already registered"))
		return
	} else if err != gorm.ErrRecordNotFound {
		server.WriteError(w, err)
		return
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		server.WriteError(w, err)
		return
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
	}
	if err := h.repo.Create(r.Context(), u); err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusCreated, map[string]any{"user": toView(u)})
}

// POST /api/auth/login
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in loginRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		server.WriteError(w, errs.Invalid("email and password are required"))
		return
	}

	u, err := h.repo.FindByEmail(r.Context(), email)
	if err == gorm.ErrRecordNotFound {
		server.WriteError(w, errs.Unauthenticated("invalid credentials"))
		return
	}
	if err != nil {
		server.WriteError(w, err)
		return
	}
	if !VerifyPassword(in.Password, u.PasswordSalt, u.PasswordHash) {
		server.WriteError(w, errs.Unauthenticated("invalid credentials"))
		return
	}

	ttl := time.Duration(h.authCfg.TokenTTLHour) * time.Hour
	token, exp, err := auth.GenerateAccessToken(h.authCfg, u.ID, u.Role, u.Email, ttl)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_at":   exp.Unix(),
		"user":         toView(u),
	})
}

// GET /api/auth/me
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ai, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.repo.FindByID(r.Context(), ai.UserID)
	if err == gorm.ErrRecordNotFound {
		server.WriteError(w, errs.NotFound("user not found"))
		return
	}
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"user": toView(u)})
}

func toView(u *User) userView {
	if u == nil {
		return userView{}
	}
	return userView{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Phone: u.Phone,
		Role:  u.Role,
	}
}
