package device

import (
	"errors"
	"fmt"
)

// RefusedReason 对 broker CONNACK 拒绝码的分类
type RefusedReason string

const (
	RefusedProtocolVersion   RefusedReason = "protocol-version"
	RefusedIdentifier        RefusedReason = "identifier-rejected"
	RefusedServerUnavailable RefusedReason = "server-unavailable"
	RefusedNotAuthorized     RefusedReason = "not-authorized"
)

// CannotConnectError broker 层拒绝连接，除凭据错误外的所有拒绝码
type CannotConnectError struct {
	Reason RefusedReason
}

func (e *CannotConnectError) Error() string {
	return fmt.Sprintf("connection refused: %s", e.Reason)
}

// InvalidAuthError 凭据错误，调用方应提示重新输入凭据而不是稍后重试
type InvalidAuthError struct{}

func (e *InvalidAuthError) Error() string {
	return "connection refused: bad username or password"
}

var (
	// ErrTimeout 在超时窗口内未收到 CONNACK
	ErrTimeout = errors.New("connect timeout")
	// ErrNotConnected 未连接，或初始数据交换未在超时窗口内完成
	ErrNotConnected = errors.New("not connected")
)

// ValidationError 调用方传入的命令参数超出允许范围
type ValidationError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d, allowed range %d..%d", e.Field, e.Value, e.Min, e.Max)
}
