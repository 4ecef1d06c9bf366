package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind 失败分类：设备、采集、提交、存储与鉴权
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindDeviceUnavailable
	KindDeviceBusy
	KindCaptureNotReady
	KindInvalidTransition
	KindValidationFailed
	KindSubmissionFailed
	KindStorageFault
	KindUnauthorized
	KindNotFound
)

var kindNames = [...]string{
	KindUnknown:           "Unknown",
	KindPermissionDenied:  "PermissionDenied",
	KindDeviceUnavailable: "DeviceUnavailable",
	KindDeviceBusy:        "DeviceBusy",
	KindCaptureNotReady:   "CaptureNotReady",
	KindInvalidTransition: "InvalidTransition",
	KindValidationFailed:  "ValidationFailed",
	KindSubmissionFailed:  "SubmissionFailed",
	KindStorageFault:      "StorageFault",
	KindUnauthorized:      "Unauthorized",
	KindNotFound:          "NotFound",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// 每个分类一个哨兵，用于 errors.Is；不带调用栈
var (
	ErrPermissionDenied  = sentinel(KindPermissionDenied, "permission denied")
	ErrDeviceUnavailable = sentinel(KindDeviceUnavailable, "device unavailable")
	ErrDeviceBusy        = sentinel(KindDeviceBusy, "device busy")
	ErrCaptureNotReady   = sentinel(KindCaptureNotReady, "capture not ready")
	ErrInvalidTransition = sentinel(KindInvalidTransition, "invalid transition")
	ErrValidationFailed  = sentinel(KindValidationFailed, "validation failed")
	ErrSubmissionFailed  = sentinel(KindSubmissionFailed, "submission failed")
	ErrStorageFault      = sentinel(KindStorageFault, "storage fault")
	ErrUnauthorized      = sentinel(KindUnauthorized, "unauthorized")
	ErrNotFound          = sentinel(KindNotFound, "not found")
)

func sentinel(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Error 带分类的错误。Code 可选，客户端用它保存服务端返回的 HTTP 状态码
type Error struct {
	Code    int        `json:"code"`
	Kind    Kind       `json:"kind"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
	Stack   string     `json:"stack,omitempty"`
	Context []KeyValue `json:"context,omitempty"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func build(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause, Stack: callers()}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同分类即匹配，哨兵穿透任意层包装；KindUnknown 退化为指针比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == KindUnknown {
		return e == t
	}
	return e.Kind == t.Kind
}

func WithKind(kind Kind, message string) *Error { return build(kind, message, nil) }

func WithKindf(kind Kind, format string, args ...interface{}) *Error {
	return build(kind, fmt.Sprintf(format, args...), nil)
}

// Wrap 保留底层错误的分类
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return build(KindOf(err), message, err)
}

// WrapKind 用指定分类覆盖底层错误，err 为 nil 时返回 nil
func WrapKind(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return build(kind, message, err)
}

func New(message string) *Error { return build(KindUnknown, message, nil) }

// WithContext 返回带附加字段的副本，原错误不变
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Context = append(append(make([]KeyValue, 0, len(e.Context)+1), e.Context...), KeyValue{Key: key, Value: value})
	return &cp
}

// callers 跳过本包内的帧
func callers() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// KindOf 沿错误链取第一个非 Unknown 的分类
func KindOf(err error) Kind {
	var e *Error
	for err != nil && stderrors.As(err, &e) {
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

func GetCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// GetMessage 最外层的可读消息，不含底层原因
func GetMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// Cause 剥掉所有 *Error 外壳
func Cause(err error) error {
	for {
		e, ok := err.(*Error)
		if !ok || e.Err == nil {
			return err
		}
		err = e.Err
	}
}

// Format %+v 追加调用栈
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') && e.Stack != "" {
			fmt.Fprintf(s, "%s\n%s", e.Error(), e.Stack)
			return
		}
		fmt.Fprint(s, e.Error())
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
