// Package resp 定义统一的 HTTP JSON 响应结构和业务错误码。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务错误码
const (
	CodeOK              = 0
	CodeInvalidParam    = 10001
	CodeUnauthorized    = 10002
	CodeForbidden       = 10003
	CodeNotFound        = 10004
	CodeConflict        = 10005
	CodeTooManyRequests = 10006
	CodeImmutable       = 20001 // 修改了不可修改的字段
	CodeOrderRejected   = 20002 // 购买前置条件不满足
	CodeInternalError   = 50000
	CodeTimeout         = 50400
)

// Response 统一响应结构
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      *T     `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteJSON 写出响应
func WriteJSON[T any](w http.ResponseWriter, status, code int, msg string, data *T, reqID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response[T]{
		Code:      code,
		Message:   msg,
		Data:      data,
		RequestID: reqID,
		TraceID:   traceID,
	})
}

// OK 写出成功响应
func OK[T any](w http.ResponseWriter, data *T, reqID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "success", data, reqID, traceID)
}

// Created 写出资源创建成功响应
func Created[T any](w http.ResponseWriter, data *T, reqID, traceID string) {
	WriteJSON(w, http.StatusCreated, CodeOK, "success", data, reqID, traceID)
}

// Error 写出错误响应，status 为 0 时由 code 推导
func Error(w http.ResponseWriter, status, code int, msg, reqID, traceID string) {
	if status == 0 {
		status = HTTPStatusFromCode(code)
	}
	WriteJSON[struct{}](w, status, code, msg, nil, reqID, traceID)
}

// HTTPStatusFromCode 将业务错误码映射为 HTTP 状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeImmutable:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeOrderRejected:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
