package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	ctxUserID        = "userID"
	headerRequestID  = "X-Request-ID"
	bearerPrefixText = "Bearer"
)

// AuthMiddleware 校验 HS256 签名的 JWT，并把 sub 中的用户 ID 写入 gin 上下文。
// 令牌由外部用户服务签发。
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != bearerPrefixText {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		// JSON 数字解析为 float64
		sub, ok := claims["sub"].(float64)
		if !ok || sub <= 0 || sub != float64(int64(sub)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		c.Set(ctxUserID, int64(sub))
		c.Next()
	}
}

// RequestLogger 为每个请求分配追踪 ID (沿用调用方的 X-Request-ID)，
// 写入请求上下文与响应头，并在请求结束后记录一条访问日志。
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(headerRequestID)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Header(headerRequestID, traceID)
		c.Request = c.Request.WithContext(logger.ContextWithTraceID(c.Request.Context(), traceID))

		start := time.Now()
		c.Next()

		userID := ""
		if id, ok := c.Get(ctxUserID); ok {
			userID = formatID(id.(int64))
		}
		entry := log.WithTrace(traceID, userID).WithRequest(models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.FullPath(),
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Status:     c.Writer.Status(),
			LatencyMs:  time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Info("request completed")
	}
}
