package server

import (
	"encoding/json"
	"net/http"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON 写 JSON 响应。
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// 此时 header 已发出，只能放弃
		return
	}
}

// WriteErrorStatus 按给定状态码写 {"error": "..."}。
func WriteErrorStatus(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteError 把业务错误映射为 HTTP 状态码并输出。
// 未分类错误一律 500 且不外泄内部细节。
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindUnauthenticated:
		status = http.StatusUnauthorized
	case errs.KindForbidden:
		status = http.StatusForbidden
	case errs.KindInvalid:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindUnavailable:
		status = http.StatusBadGateway
	}
	WriteErrorStatus(w, status, errs.Message(err))
}

// DecodeJSON 解析请求体；失败返回 invalid 类错误。
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.KindInvalid, "invalid request body", err)
	}
	return nil
}
