package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/hajimehoshi/go-mp3"
	"github.com/iabetor/voxbatch/internal/logger"
)

// DevicePlayer 在进程内解码 MP3 并通过 malgo (miniaudio) 输出到默认扬声器，
// 不依赖系统里的播放命令。
type DevicePlayer struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewDevicePlayer 创建一个新的设备播放器。
func NewDevicePlayer() (*DevicePlayer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &DevicePlayer{ctx: ctx}, nil
}

// Play 实现 Backend。阻塞直到播放完成或 ctx 被取消。
func (p *DevicePlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("播放器已关闭")
	}
	p.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer f.Close()

	// go-mp3 输出固定为立体声 signed 16-bit LE
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("MP3 解码失败: %w", err)
	}
	pcmBytes, err := io.ReadAll(decoder)
	if err != nil {
		return fmt.Errorf("读取 PCM 数据失败: %w", err)
	}
	if len(pcmBytes) == 0 {
		return nil
	}

	const channels = 2
	pos := 0
	done := make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = uint32(decoder.SampleRate())
	deviceConfig.PeriodSizeInFrames = 512
	deviceConfig.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			bytesNeeded := int(frameCount) * channels * 2 // 每个 int16 采样点 2 字节
			if pos >= len(pcmBytes) {
				// 数据播完，填充静音
				for i := range outputSamples[:bytesNeeded] {
					outputSamples[i] = 0
				}
				select {
				case done <- struct{}{}:
				default:
				}
				return
			}

			end := pos + bytesNeeded
			if end > len(pcmBytes) {
				end = len(pcmBytes)
			}
			copy(outputSamples, pcmBytes[pos:end])
			// 如果数据不够，剩余部分填零
			for i := end - pos; i < bytesNeeded; i++ {
				outputSamples[i] = 0
			}
			pos = end
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("启动播放设备失败: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		logger.Info("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成: %s", path)
		return nil
	}
}

// Close 释放所有资源。
func (p *DevicePlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
