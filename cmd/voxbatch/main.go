package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabetor/voxbatch/internal/batch"
	"github.com/iabetor/voxbatch/internal/bridge"
	"github.com/iabetor/voxbatch/internal/config"
	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/iabetor/voxbatch/internal/pipeline"
	"github.com/iabetor/voxbatch/internal/tts"
)

const exampleFile = "example_tts_input.json"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "配置文件路径（YAML 或 TOML），为空使用默认配置")
	quiet := flag.Bool("quiet", false, "不在控制台输出日志")
	noPlay := flag.Bool("no-play", false, "只生成音频文件，不播放")
	listVoices := flag.Bool("list-voices", false, "列出 Edge TTS 可用音色后退出")
	locale := flag.String("locale", "", "配合 -list-voices 按语言过滤，如 hi 或 en-US")
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	if err := logger.Init(logConfig(cfg.Log, *quiet)); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listVoices {
		lister := tts.NewEdgeVoiceLister("", time.Duration(cfg.TTS.TimeoutSeconds)*time.Second)
		return printVoices(ctx, lister, *locale)
	}

	input := flag.Arg(0)
	if input == "" {
		input = exampleFile
		if err := batch.WriteExample(input); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		fmt.Printf("已创建示例文件: %s\n", input)
	}

	var opts []pipeline.Option
	if !*noPlay {
		opts = append(opts, pipeline.WithPlayback())
	}
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建流水线失败: %v\n", err)
		return 1
	}
	defer p.Close()

	// 命令行是普通的同步调用点
	report, err := p.Processor().ProcessFile(ctx, input, batch.Options{Mode: bridge.Inline})
	if err != nil {
		fmt.Fprintf(os.Stderr, "处理批量文件失败: %v\n", err)
		return 1
	}

	printReport(report)
	if !report.OK {
		fmt.Fprintln(os.Stderr, "批量处理被中断")
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func logConfig(c config.LogConfig, quiet bool) logger.Config {
	return logger.Config{
		Level:      c.Level,
		File:       c.File,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Quiet:      quiet,
	}
}

func printVoices(ctx context.Context, lister tts.VoiceLister, locale string) int {
	voices, err := lister.ListVoices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取音色列表失败: %v\n", err)
		return 1
	}
	voices = tts.FilterVoices(voices, locale)

	fmt.Println("可用音色:")
	for _, v := range voices {
		fmt.Printf("- %s: %s (%s)\n", v.ShortName, v.FriendlyName, v.Gender)
	}
	fmt.Printf("共 %d 个\n", len(voices))
	return 0
}

func printReport(r batch.Report) {
	for _, res := range r.Results {
		switch res.Status {
		case batch.StatusGenerated:
			fmt.Printf("  [%d] %-24s 已生成 (%.2fs)\n", res.Index+1, res.OutputFile, res.Elapsed.Seconds())
		case batch.StatusSkipped:
			fmt.Printf("  [%d] %-24s 已跳过（文本为空）\n", res.Index+1, res.OutputFile)
		case batch.StatusFailed:
			fmt.Printf("  [%d] %-24s 失败: %v\n", res.Index+1, res.OutputFile, res.Err)
		}
	}
	fmt.Printf("完成: 生成 %d，跳过 %d，失败 %d\n",
		r.Count(batch.StatusGenerated), r.Count(batch.StatusSkipped), r.Count(batch.StatusFailed))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "voxbatch 批量文本转语音工具")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "用法: voxbatch [-config <path>] [-quiet] [-no-play] [批量文件.json]")
	fmt.Fprintln(os.Stderr, "      voxbatch -list-voices [-locale <lang>]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "未指定批量文件时，生成并处理示例文件 %s。\n", exampleFile)
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
}
