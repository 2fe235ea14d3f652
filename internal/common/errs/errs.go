package errs

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类，HTTP 边界据此映射状态码。
type Kind int

const (
	KindInternal        Kind = iota // 未分类 / 内部错误
	KindUnauthenticated             // 未登录 / 凭证无效
	KindForbidden                   // 已登录但无权限
	KindInvalid                     // 入参或状态前置条件不满足
	KindNotFound                    // 不存在（含“对外隐藏存在性”的场景）
	KindConflict                    // 唯一性冲突
	KindUnavailable                 // 外部依赖不可用
)

// Error 带分类的业务错误。
type Error struct {
	Kind Kind
	Msg  string
	Err  error // 可选：底层错误
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf 取出错误分类；非 *Error 一律按内部错误处理。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message 对外展示的错误文案；内部错误不外泄细节。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}

func Unauthenticated(msg string) error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) error       { return New(KindForbidden, msg) }
func Invalid(msg string) error         { return New(KindInvalid, msg) }
func NotFound(msg string) error        { return New(KindNotFound, msg) }
func Conflict(msg string) error        { return New(KindConflict, msg) }
