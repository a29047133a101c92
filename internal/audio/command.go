package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Runner 执行外部命令，测试时可替换。
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner 使用 os/exec 执行命令，失败时附带 stderr 内容。
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s 执行失败: %w, stderr: %s", name, err, msg)
		}
		return fmt.Errorf("%s 执行失败: %w", name, err)
	}
	return nil
}

// PlayCommand 返回指定系统上的默认播放命令（文件路径追加在末尾）。
// 不支持的系统返回 nil。
func PlayCommand(goos string) []string {
	switch goos {
	case "windows":
		return []string{"cmd", "/c", "start", ""}
	case "darwin":
		return []string{"afplay"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"mpg123", "-q"}
	default:
		return nil
	}
}

// OpenCommand 返回指定系统上用默认程序打开文件的命令。
func OpenCommand(goos string) []string {
	switch goos {
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	case "darwin":
		return []string{"open"}
	default:
		return []string{"xdg-open"}
	}
}

// CommandPlayer 通过外部命令播放音频文件。
type CommandPlayer struct {
	argv []string
	run  Runner
}

// NewCommandPlayer 创建命令播放器。argv 为空表示当前系统不支持，Play 会直接返回错误。
func NewCommandPlayer(argv []string, run Runner) *CommandPlayer {
	if run == nil {
		run = ExecRunner
	}
	return &CommandPlayer{argv: argv, run: run}
}

// DefaultCommandPlayer 按当前系统选择播放命令。
func DefaultCommandPlayer() *CommandPlayer {
	return NewCommandPlayer(PlayCommand(runtime.GOOS), nil)
}

// Play 实现 Backend，阻塞直到命令退出。
func (c *CommandPlayer) Play(ctx context.Context, path string) error {
	if len(c.argv) == 0 {
		return fmt.Errorf("不支持在 %s 上播放音频", runtime.GOOS)
	}
	args := append(append([]string{}, c.argv[1:]...), path)
	return c.run(ctx, c.argv[0], args...)
}
