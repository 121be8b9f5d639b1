// Package api 提供门店的 HTTP API 处理器
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
	"github.com/MorseWayne/catalog_shop/internal/middleware"
	"github.com/MorseWayne/catalog_shop/internal/resp"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

// errorStatus 把业务错误映射为 HTTP 状态码和业务错误码
func errorStatus(err error) (int, int) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, resp.CodeInvalidParam
	case domain.IsImmutable(err):
		return http.StatusConflict, resp.CodeImmutable
	case domain.IsPurchase(err), errors.Is(err, service.ErrProductInactive):
		return http.StatusUnprocessableEntity, resp.CodeOrderRejected
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrPromotionNotFound):
		return http.StatusNotFound, resp.CodeNotFound
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenNotReady):
		return http.StatusUnauthorized, resp.CodeUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp.CodeTimeout
	default:
		return http.StatusInternalServerError, resp.CodeInternalError
	}
}

// writeError 写出错误响应，内部错误只记录日志不向外暴露细节
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal server error"
	}
	resp.Error(c.Writer, status, code, msg, requestID(c), traceID(c))
}

func badRequest(c *gin.Context, msg string) {
	resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, msg, requestID(c), traceID(c))
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.GinKeyRequestID)
}

func traceID(c *gin.Context) string {
	return c.GetString(middleware.GinKeyTraceID)
}
