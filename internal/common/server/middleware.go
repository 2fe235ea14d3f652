package server

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/logger"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/middleware"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Middleware HTTP 中间件。
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串起来（按传入顺序执行）。
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] == nil {
				continue
			}
			h = mws[i](h)
		}
		return h
	}
}

// Recovery 防止 panic 直接把进程打崩，并记录栈信息。
func Recovery(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Errorf("panic in http handler path=%s err=%v stack=%s", r.URL.Path, rec, string(debug.Stack()))
					}
					WriteErrorStatus(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog 记录每个 HTTP 请求的耗时/状态码。
func AccessLog(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			cost := time.Since(start)

			if log != nil {
				fields := map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": rec.status,
					"cost":   cost.String(),
				}
				if rec.status >= 500 {
					log.WithFields(fields).Warn("http request failed")
				} else {
					log.WithFields(fields).Info("http request ok")
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Tracing 从请求头提取上游 span 并创建 server span。
func Tracing(serviceName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := opentracing.GlobalTracer()
			if tracer == nil {
				next.ServeHTTP(w, r)
				return
			}

			var parent opentracing.SpanContext
			if sc, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
				parent = sc
			}

			operation := r.Method + " " + r.URL.Path
			var span opentracing.Span
			if parent != nil {
				span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
			} else {
				span = tracer.StartSpan(operation)
			}
			defer span.Finish()

			ext.SpanKindRPCServer.Set(span)
			ext.Component.Set(span, "http")
			ext.HTTPMethod.Set(span, r.Method)
			ext.HTTPUrl.Set(span, r.URL.Path)
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}

			next.ServeHTTP(w, r.WithContext(opentracing.ContextWithSpan(r.Context(), span)))
		})
	}
}

// JWTAuth 从 `Authorization: Bearer <token>` 解析身份并写入 ctx。
// 解析失败一律按匿名继续（fail closed 在业务侧：匿名调用任何需要身份的
// 操作会得到 401），绝不会因为坏 token 反而放行。
func JWTAuth(cfg config.AuthConfig, log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			raw := auth.BearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ai, err := auth.ParseAccessToken(cfg, raw)
			if err != nil {
				if log != nil {
					log.WithField("path", r.URL.Path).Debugf("discarding invalid token: %v", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuthInfo(r.Context(), ai)))
		})
	}
}

// RateLimit 基于令牌桶的简单限流；超限返回 429。
func RateLimit(limiter middleware.RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(r.Context()) {
				WriteErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth 取出 ctx 中的身份；缺失时写 401 并返回 false。
func RequireAuth(w http.ResponseWriter, r *http.Request) (auth.AuthInfo, bool) {
	ai, ok := auth.FromContext(r.Context())
	if !ok || strings.TrimSpace(ai.UserID) == "" {
		WriteErrorStatus(w, http.StatusUnauthorized, "authentication required")
		return auth.AuthInfo{}, false
	}
	return ai, true
}

// RequireAdmin 在 RequireAuth 基础上要求管理员角色。
func RequireAdmin(w http.ResponseWriter, r *http.Request) (auth.AuthInfo, bool) {
	ai, ok := RequireAuth(w, r)
	if !ok {
		return auth.AuthInfo{}, false
	}
	if !ai.IsAdmin() {
		WriteErrorStatus(w, http.StatusForbidden, "admin role required")
		return auth.AuthInfo{}, false
	}
	return ai, true
}
