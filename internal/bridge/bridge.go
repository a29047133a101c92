// Package bridge 让同步调用点可以运行语音流水线。
//
// 调用方显式声明自己所处的环境：
//   - Inline：普通同步调用点（CLI），直接在当前 goroutine 中运行到结束；
//   - Detached：调用方已处于某个受管执行上下文（如 HTTP 请求处理），
//     在独立的 goroutine 中运行，并使用与调用方取消信号解耦的 context，
//     等待其结束后再读取结果。
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iabetor/voxbatch/internal/logger"
)

// ErrUnknownMode 表示传入了未知的执行方式。
var ErrUnknownMode = errors.New("未知的执行方式")

// Mode 是流水线的执行方式。
type Mode int

const (
	// Inline 在调用方的 goroutine 中运行。
	Inline Mode = iota + 1
	// Detached 在专用 goroutine 中运行，结果在其退出后读取。
	Detached
)

func (m Mode) String() string {
	switch m {
	case Inline:
		return "inline"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode 解析配置中的执行方式名称。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inline":
		return Inline, nil
	case "detached":
		return Detached, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Func 是被运行的流水线步骤。
type Func func(ctx context.Context) bool

// Run 按 mode 运行 fn 并返回它的结果。
// fn 中的 panic 被记录（含调用栈）并视为 false；mode 非法时返回 ErrUnknownMode。
func Run(ctx context.Context, mode Mode, fn Func) (bool, error) {
	switch mode {
	case Inline:
		return call(ctx, fn), nil
	case Detached:
		// 独立执行上下文：保留 ctx 中的值，不继承取消和截止时间
		detached := context.WithoutCancel(ctx)
		result := make(chan bool, 1)
		go func() {
			result <- call(detached, fn)
		}()
		// 等待 worker 结束后再读取结果
		return <-result, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
}

func call(ctx context.Context, fn Func) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorStack("[bridge] 流水线发生 panic", fmt.Errorf("%v", r))
			ok = false
		}
	}()
	return fn(ctx)
}
