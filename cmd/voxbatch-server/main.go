package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabetor/voxbatch/internal/config"
	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/iabetor/voxbatch/internal/pipeline"
	"github.com/iabetor/voxbatch/internal/server"
	"golang.org/x/net/netutil"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "配置文件路径（YAML 或 TOML），为空使用默认配置")
	addr := flag.String("addr", "", "监听地址，覆盖配置中的 server.addr")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			return 1
		}
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Close()

	logger.Infof("[main] voxbatch 服务启动中 (log_level=%s, bridge=%s)", cfg.Log.Level, cfg.Server.BridgeMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg)
	if err != nil {
		logger.Errorf("[main] 创建流水线失败: %v", err)
		return 1
	}
	defer p.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := p.CheckPublisher(checkCtx); err != nil {
		logger.Warnf("[main] S3 镜像不可用，上传会失败: %v", err)
	}
	cancel()

	// 启动时先清理一次，之后定期执行
	if _, err := p.Store().Cleanup(ctx); err != nil {
		logger.Warnf("[main] 清理输出目录失败: %v", err)
	}
	go p.Store().Run(ctx, p.CleanupInterval())

	srv := server.New(server.Deps{
		Processor: p.Processor(),
		Store:     p.Store(),
		Mode:      p.Mode(),
		Voices:    p.Voices(),
		Config:    cfg.Server,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Errorf("[main] 监听 %s 失败: %v", cfg.Server.Addr, err)
		return 1
	}
	if n := cfg.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	httpServer := &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[main] 正在监听 %s", ln.Addr())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[main] HTTP 服务异常退出: %v", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("[main] 收到退出信号，正在关闭...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("[main] 关闭 HTTP 服务失败: %v", err)
		}
	}

	logger.Info("[main] voxbatch 服务已停止")
	return 0
}
