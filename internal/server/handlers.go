package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iabetor/voxbatch/internal/audio"
	"github.com/iabetor/voxbatch/internal/batch"
	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/iabetor/voxbatch/internal/store"
	"github.com/iabetor/voxbatch/internal/tts"
)

const (
	testText       = "This is a test of the Edge TTS API."
	testVoice      = "en-US-GuyNeural"
	testOutputFile = "test_output.mp3"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Voxbatch TTS API is running",
		"instruction": "POST a JSON file to /tts to get text-to-speech output",
	})
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleTTS 处理上传的批量 JSON。
// 只生成一个文件或 return_first_only 为真时直接返回音频，否则返回文件列表。
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	firstOnly, err := parseFormBool(r.FormValue("return_first_only"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file: "+err.Error())
		return
	}
	defer file.Close()

	// 每个请求独立的临时目录，无论成功与否都在返回前删除
	tmpDir, err := os.MkdirTemp(s.tempDir, "voxbatch-*")
	if err != nil {
		logger.ErrorStack("[server] 创建临时目录失败", err)
		writeError(w, http.StatusInternalServerError, "Error processing request: "+err.Error())
		return
	}
	defer os.RemoveAll(tmpDir)

	jsonPath := filepath.Join(tmpDir, "input.json")
	if err := saveUpload(file, jsonPath); err != nil {
		logger.ErrorStack("[server] 保存上传文件失败", err)
		writeError(w, http.StatusInternalServerError, "Error processing request: "+err.Error())
		return
	}

	b, err := batch.ParseFile(jsonPath)
	if err != nil {
		logger.Warnf("[server] 批量文件无效 (%s): %v", RequestID(r.Context()), err)
		writeError(w, http.StatusBadRequest, batchErrorMessage(err))
		return
	}
	logger.Infof("[server] 收到 %d 条请求 (return_first_only=%v)", len(b.Requests), firstOnly)

	report := s.processor.Process(r.Context(), b, batch.Options{FirstOnly: firstOnly, Mode: s.mode})
	generated := report.GeneratedResults()

	switch {
	case len(generated) == 0:
		writeError(w, http.StatusBadGateway, "No speech files could be generated")
	case firstOnly || len(generated) == 1:
		// 直接返回本次合成的数据，同名文件可能已被并发请求覆盖
		writeAudio(w, r, generated[0].OutputFile, generated[0].Audio)
	default:
		names := make([]string, len(generated))
		for i, res := range generated {
			names[i] = res.OutputFile
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Generated %d audio files", len(generated)),
			"files":   names,
			"note":    "Use /get-file/FILENAME to download each file",
		})
	}
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	path, err := s.store.Resolve(r.Context(), name)
	switch {
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, fmt.Sprintf("File %s not found", name))
		return
	case err != nil:
		logger.Errorf("[server] 读取文件 %s 失败: %v", name, err)
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	s.serveAudio(w, r, path)
}

// handleTest 用固定英文句子走一遍完整流程，返回诊断信息。
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	job := batch.Job{
		Text:       testText,
		Voice:      tts.Voice{Name: testVoice}.WithDefaults(tts.DefaultVoice()),
		OutputFile: testOutputFile,
	}
	res := s.processor.Run(r.Context(), job, s.mode)
	if res.Status != batch.StatusGenerated {
		msg := "TTS test failed"
		if res.Err != nil {
			msg = "TTS test error: " + res.Err.Error()
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"status": "error", "message": msg})
		return
	}

	info, err := audio.ProbeBytes(res.Audio)
	if err != nil {
		// 大小仍然可用，时长留空
		logger.Warnf("[server] 解析测试音频失败: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"message":          "TTS test successful",
		"file_size":        info.Size,
		"duration_seconds": info.Duration.Seconds(),
		"elapsed_seconds":  res.Elapsed.Seconds(),
		"download_url":     "/get-file/" + testOutputFile,
	})
}

// serveAudio 以附件形式返回 MP3 文件，支持 Range 请求。
func (s *Server) serveAudio(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("File %s not found", filepath.Base(path)))
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, st.ModTime(), f)
}

// writeAudio 以附件形式返回内存中的 MP3 数据。
func writeAudio(w http.ResponseWriter, r *http.Request, name string, data []byte) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Now(), bytes.NewReader(data))
}

// handleVoices 列出可用音色，?locale= 按语言前缀过滤。
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		writeError(w, http.StatusNotImplemented, "Voice listing is not available")
		return
	}

	voices, err := s.voices.ListVoices(r.Context())
	if err != nil {
		logger.Errorf("[server] 获取音色列表失败: %v", err)
		writeError(w, http.StatusBadGateway, "Error listing voices: "+err.Error())
		return
	}
	voices = tts.FilterVoices(voices, r.URL.Query().Get("locale"))
	if voices == nil {
		voices = []tts.VoiceInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(voices), "voices": voices})
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.Debugf("[server] 已保存上传文件 %s (%d bytes)", path, n)
	return nil
}

// batchErrorMessage 把解析错误转换成返回给客户端的说明。
func batchErrorMessage(err error) string {
	switch {
	case errors.Is(err, batch.ErrMissingRequests):
		return "Invalid JSON format. Expected 'requests' array."
	case errors.Is(err, batch.ErrEmptyBatch):
		return "No requests found in JSON"
	case errors.Is(err, batch.ErrInvalidJSON):
		return "Invalid JSON format: " + strings.TrimPrefix(err.Error(), batch.ErrInvalidJSON.Error()+": ")
	default:
		return "Error processing request: " + err.Error()
	}
}

// parseFormBool 解析表单中的布尔值，空值为 false。
func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0", "no", "off", "f", "n":
		return false, nil
	case "true", "1", "yes", "on", "t", "y":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean value for return_first_only: %q", v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("[server] 写入响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
