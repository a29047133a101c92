package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/iabetor/voxbatch/internal/bridge"
	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/iabetor/voxbatch/internal/translate"
	"github.com/iabetor/voxbatch/internal/tts"
)

// errPipelinePanic 表示流水线内部 panic，详细信息已由 bridge 记录。
var errPipelinePanic = errors.New("语音流水线异常终止")

// Observer 在每个音频文件生成后收到通知（播放、索引、上传镜像等）。
type Observer interface {
	Generated(ctx context.Context, path string)
}

// ObserverFunc 让普通函数满足 Observer 接口。
type ObserverFunc func(ctx context.Context, path string)

// Generated 实现 Observer。
func (f ObserverFunc) Generated(ctx context.Context, path string) { f(ctx, path) }

// Config 是 Processor 的静态配置。
type Config struct {
	OutputDir string
	// Delay 相邻两次合成之间的间隔，对外部服务的礼貌限速。
	Delay time.Duration
	// Defaults 请求未指定语音参数时使用的值。
	Defaults tts.Voice
	// Target translate_to_hindi 为 true 时的目标语言。
	Target string
}

// Options 控制单次批量处理。
type Options struct {
	// FirstOnly 只处理第一条请求。
	FirstOnly bool
	// Mode 每条请求的执行方式，零值按 Inline 处理。
	Mode bridge.Mode
}

// Status 是单条请求的处理结果。
type Status int

const (
	StatusGenerated Status = iota + 1
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusGenerated:
		return "generated"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result 记录一条请求的处理情况。
// Audio 是本次合成写入 Path 的数据；同名文件之后可能被其他请求覆盖，
// 需要返回本次结果时应使用 Audio 而不是重新读取 Path。
type Result struct {
	Index      int
	OutputFile string
	Path       string
	Audio      []byte
	Status     Status
	Err        error
	Elapsed    time.Duration
}

// Report 是一次批量处理的汇总。
// OK 只表示批量被完整读取并遍历，单条失败体现在 Results 中。
type Report struct {
	OK      bool
	Results []Result
}

// Generated 返回成功生成的文件路径，顺序与请求一致。
func (r Report) Generated() []string {
	var paths []string
	for _, res := range r.Results {
		if res.Status == StatusGenerated {
			paths = append(paths, res.Path)
		}
	}
	return paths
}

// GeneratedResults 返回成功生成的结果，顺序与请求一致。
func (r Report) GeneratedResults() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusGenerated {
			out = append(out, res)
		}
	}
	return out
}

// Count 返回指定状态的请求数量。
func (r Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Processor 按顺序处理批量请求。
// 每条请求携带自己的 tts.Voice，Processor 本身不保存可变的语音状态，可被多个 goroutine 共用。
type Processor struct {
	speaker    *tts.Speaker
	translator *translate.Adapter
	cfg        Config
	observers  []Observer
}

// NewProcessor 创建批量处理器。
func NewProcessor(speaker *tts.Speaker, translator *translate.Adapter, cfg Config, observers ...Observer) *Processor {
	if cfg.Defaults == (tts.Voice{}) {
		cfg.Defaults = tts.DefaultVoice()
	}
	if cfg.Target == "" {
		cfg.Target = "hi"
	}
	if translator == nil {
		translator = translate.NewAdapter(nil, 0)
	}
	return &Processor{speaker: speaker, translator: translator, cfg: cfg, observers: observers}
}

// OutputDir 返回音频输出目录。
func (p *Processor) OutputDir() string { return p.cfg.OutputDir }

// Process 依次处理 b 中的请求。
// 空文本的请求被跳过；单条失败只记录日志，不会中断批量。
// ctx 被取消时停止处理剩余请求，此时 Report.OK 为 false。
func (p *Processor) Process(ctx context.Context, b *Batch, opts Options) Report {
	if opts.Mode == 0 {
		opts.Mode = bridge.Inline
	}

	requests := b.Requests
	if opts.FirstOnly && len(requests) > 1 {
		requests = requests[:1]
	}

	report := Report{Results: make([]Result, 0, len(requests))}
	processed := 0
	for i, req := range requests {
		if req.Text == "" {
			logger.Infof("[batch] 跳过第 %d 条请求: 文本为空", i+1)
			report.Results = append(report.Results, Result{
				Index:      i,
				OutputFile: sanitizeFileName(req.OutputFile, i),
				Status:     StatusSkipped,
			})
			continue
		}

		if processed > 0 && p.cfg.Delay > 0 {
			if err := sleep(ctx, p.cfg.Delay); err != nil {
				logger.Warnf("[batch] 批量处理被取消，剩余 %d 条未处理", len(requests)-i)
				return report
			}
		}
		if ctx.Err() != nil {
			logger.Warnf("[batch] 批量处理被取消，剩余 %d 条未处理", len(requests)-i)
			return report
		}

		job := req.Resolve(i, p.cfg.Defaults)
		logger.Infof("[batch] 处理第 %d 条请求: '%s...' 语音=%s", i+1, preview(job.Text, 30), job.Voice.Name)

		report.Results = append(report.Results, p.Run(ctx, job, opts.Mode))
		processed++
	}

	report.OK = true
	return report
}

// ProcessFile 读取 path 并处理其中的请求。
// 文件不存在或格式错误时返回错误；空批量视为成功且不生成任何文件。
func (p *Processor) ProcessFile(ctx context.Context, path string, opts Options) (Report, error) {
	b, err := ParseFile(path)
	if errors.Is(err, ErrEmptyBatch) {
		logger.Warnf("[batch] %s 中没有请求", path)
		return Report{OK: true}, nil
	}
	if err != nil {
		return Report{}, err
	}
	return p.Process(ctx, b, opts), nil
}

// Run 执行单个 Job：按需翻译，再合成到输出目录。
func (p *Processor) Run(ctx context.Context, job Job, mode bridge.Mode) Result {
	start := time.Now()
	res := Result{
		Index:      job.Index,
		OutputFile: job.OutputFile,
		Path:       filepath.Join(p.cfg.OutputDir, job.OutputFile),
	}

	var (
		audio    []byte
		speakErr error
	)
	ok, err := bridge.Run(ctx, mode, func(ctx context.Context) bool {
		text := job.Text
		if job.Translate {
			text = p.translator.Translate(ctx, text, p.cfg.Target)
			logger.Infof("[batch] 翻译结果: %s", text)
		}
		audio, speakErr = p.speaker.Speak(ctx, text, job.Voice, res.Path)
		return speakErr == nil
	})
	res.Elapsed = time.Since(start)

	switch {
	case err != nil:
		res.Status, res.Err = StatusFailed, err
	case ok:
		res.Status, res.Audio = StatusGenerated, audio
	case speakErr != nil:
		res.Status, res.Err = StatusFailed, speakErr
	default:
		res.Status, res.Err = StatusFailed, errPipelinePanic
	}

	if res.Status != StatusGenerated {
		logger.Errorf("[batch] 第 %d 条请求生成失败: %v", job.Index+1, res.Err)
		return res
	}

	logger.Infof("[batch] 已生成 %s，耗时 %.2f 秒", res.Path, res.Elapsed.Seconds())
	for _, o := range p.observers {
		notify(ctx, o, res.Path)
	}
	return res
}

func notify(ctx context.Context, o Observer, path string) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorStack("[batch] 生成通知处理异常", fmt.Errorf("%v", r))
		}
	}()
	o.Generated(ctx, path)
}

// sleep 等待 d，ctx 取消时提前返回错误。
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
