package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Info 描述一个 MP3 文件的基本信息。
type Info struct {
	Size       int64
	SampleRate int
	Duration   time.Duration
}

// Probe 读取 MP3 文件头，计算采样率与时长，不解码全部数据。
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, err
	}
	return probeReader(f, st.Size())
}

// ProbeBytes 与 Probe 相同，但直接解析内存中的 MP3 数据。
func ProbeBytes(data []byte) (Info, error) {
	return probeReader(bytes.NewReader(data), int64(len(data)))
}

func probeReader(r io.ReadSeeker, size int64) (Info, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return Info{Size: size}, fmt.Errorf("MP3 解析失败: %w", err)
	}

	info := Info{Size: size, SampleRate: decoder.SampleRate()}
	// Length 返回解码后的字节数：立体声 16-bit，每帧 4 字节
	if length := decoder.Length(); length > 0 && info.SampleRate > 0 {
		frames := length / 4
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}
