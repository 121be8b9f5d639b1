package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
	"github.com/MorseWayne/catalog_shop/internal/resp"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

const bearerPrefix = "Bearer "

// RequireAuth JWT认证中间件
// 校验 Authorization: Bearer <token>，并把用户写入 gin 上下文和请求上下文。
func RequireAuth(jwtService service.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetString(GinKeyRequestID)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			unauthorized(c, "invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if tokenString == "" {
			unauthorized(c, "token required")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			logger.Warn("token validation failed", zap.String("request_id", reqID), zap.Error(err))
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				unauthorized(c, "token expired")
			case errors.Is(err, service.ErrTokenNotReady):
				unauthorized(c, "token not ready")
			default:
				unauthorized(c, "invalid token")
			}
			return
		}

		user := claims.User()
		c.Set(GinKeyUser, user)
		c.Request = c.Request.WithContext(withUser(c.Request.Context(), user))
		c.Next()
	}
}

// RequireRole 角色授权中间件，需在 RequireAuth 之后使用
func RequireRole(requiredRole domain.UserRole, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFromGin(c)
		if user == nil {
			unauthorized(c, "authentication required")
			return
		}

		if user.Role != requiredRole {
			logger.Warn("insufficient permissions",
				zap.String("request_id", c.GetString(GinKeyRequestID)),
				zap.Int64("user_id", user.ID),
				zap.String("user_role", string(user.Role)),
				zap.String("required_role", string(requiredRole)),
			)
			resp.Error(c.Writer, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions",
				c.GetString(GinKeyRequestID), c.GetString(GinKeyTraceID))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin 要求管理员角色
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	return RequireRole(domain.UserRoleAdmin, logger)
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="catalog"`)
	resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, msg,
		c.GetString(GinKeyRequestID), c.GetString(GinKeyTraceID))
	c.Abort()
}
