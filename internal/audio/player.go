package audio

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/iabetor/voxbatch/internal/logger"
)

// Player 播放生成的音频文件。
// 先尝试主播放方式，失败后用系统默认程序打开文件；两者都失败只记录日志。
type Player struct {
	primary Backend
	opener  Backend
}

// NewPlayer 创建播放器。opener 为 nil 时不做回退。
func NewPlayer(primary, opener Backend) *Player {
	return &Player{primary: primary, opener: opener}
}

// DefaultPlayer 按当前系统选择播放命令和打开方式。
func DefaultPlayer() *Player {
	return NewPlayer(DefaultCommandPlayer(), NewCommandPlayer(OpenCommand(runtime.GOOS), nil))
}

// Play 播放 path 指向的文件，返回是否有任意一种方式成功。
func (p *Player) Play(ctx context.Context, path string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorStack("[audio] 播放时发生 panic", fmt.Errorf("%v", r))
			ok = false
		}
	}()

	if _, err := os.Stat(path); err != nil {
		logger.Errorf("[audio] 音频文件不可用: %v", err)
		return false
	}

	if p.primary != nil {
		err := p.primary.Play(ctx, path)
		if err == nil {
			return true
		}
		logger.Warnf("[audio] 播放失败，尝试用系统默认程序打开: %v", err)
	}

	if p.opener == nil {
		logger.Error("[audio] 没有可用的播放方式")
		return false
	}
	if err := p.opener.Play(ctx, path); err != nil {
		logger.Errorf("[audio] 所有播放方式均失败: %v", err)
		return false
	}
	return true
}

// Generated 在批量处理生成文件后立即播放，供 CLI 使用。
func (p *Player) Generated(ctx context.Context, path string) {
	logger.Infof("[audio] 正在播放: %s", path)
	p.Play(ctx, path)
}
