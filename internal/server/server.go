// Package server 通过 HTTP 暴露批量语音合成。
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/iabetor/voxbatch/internal/batch"
	"github.com/iabetor/voxbatch/internal/bridge"
	"github.com/iabetor/voxbatch/internal/config"
	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/iabetor/voxbatch/internal/store"
	"github.com/iabetor/voxbatch/internal/tts"
	"go.uber.org/zap"
)

// Deps 是 Server 依赖的组件。
type Deps struct {
	Processor *batch.Processor
	Store     *store.Store
	Mode      bridge.Mode
	// Voices 为 nil 时 /voices 返回 501。
	Voices tts.VoiceLister
	Config config.ServerConfig
	// TempDir 上传文件的临时目录所在位置，为空时使用系统临时目录。
	TempDir string
}

// Server 处理 HTTP 请求，本身不持有可变状态。
type Server struct {
	processor *batch.Processor
	store     *store.Store
	mode      bridge.Mode
	voices    tts.VoiceLister
	cfg       config.ServerConfig
	tempDir   string
}

// New 创建 Server。
func New(d Deps) *Server {
	if d.Mode == 0 {
		d.Mode = bridge.Detached
	}
	if d.Config.MaxUploadMB <= 0 {
		d.Config.MaxUploadMB = 10
	}
	return &Server{
		processor: d.Processor,
		store:     d.Store,
		mode:      d.Mode,
		voices:    d.Voices,
		cfg:       d.Config,
		tempDir:   d.TempDir,
	}
}

// Routes 返回完整的路由。
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
	}))

	r.Get("/", s.handleRoot)
	r.Get("/healthcheck", s.handleHealthcheck)
	r.Get("/test", s.handleTest)
	r.Get("/voices", s.handleVoices)
	r.Get("/get-file/{filename}", s.handleGetFile)

	if n := s.cfg.RateLimitPerMinute; n > 0 {
		r.With(httprate.LimitByIP(n, time.Minute)).Post("/tts", s.handleTTS)
	} else {
		r.Post("/tts", s.handleTTS)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

type ctxKeyRequestID struct{}

// requestID 为每个请求分配 UUID，客户端已提供 X-Request-Id 时沿用。
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID 返回 ctx 中的请求 ID。
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Z.Info("[http] 请求完成",
			zap.String("id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
