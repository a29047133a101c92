// Package store 管理输出目录中的音频文件：记录索引、按名称解析下载路径，
// 并按保留策略清理过期或超出容量的文件。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/voxbatch/internal/audio"
	"github.com/iabetor/voxbatch/internal/logger"
)

// ErrInvalidName 表示文件名为空、包含路径或指向隐藏文件。
var ErrInvalidName = errors.New("无效的文件名")

// Policy 是保留策略，零值表示不限制。
type Policy struct {
	MaxSize int64
	MaxAge  time.Duration
}

// Entry 是索引中的一条记录。
type Entry struct {
	Name       string
	Size       int64
	Duration   time.Duration
	CreatedAt  time.Time
	LastAccess time.Time
}

// Stats 是一次清理的结果。
type Stats struct {
	Expired   int
	Evicted   int
	Forgotten int
	Adopted   int
	TotalSize int64
}

// Store 是输出目录的索引。
type Store struct {
	db     *DB
	dir    string
	policy Policy
	now    func() time.Time

	mu sync.Mutex // 串行化 Cleanup
}

// New 创建 Store。db 需已完成 Migrate。
func New(db *DB, dir string, policy Policy) *Store {
	return &Store{db: db, dir: dir, policy: policy, now: time.Now}
}

// Dir 返回输出目录。
func (s *Store) Dir() string { return s.dir }

// Track 记录 path 对应的文件，可作为 batch.Observer 使用。
// 只记录输出目录中的文件，其它路径忽略。
func (s *Store) Track(ctx context.Context, path string) error {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(s.dir) {
		return fmt.Errorf("%s 不在输出目录 %s 中", path, s.dir)
	}
	name := filepath.Base(path)
	if err := validateName(name); err != nil {
		return err
	}

	st, err := os.Stat(path)
	if err != nil {
		return err
	}

	var duration time.Duration
	if info, err := audio.Probe(path); err == nil {
		duration = info.Duration
	} else {
		logger.Debugf("[store] 无法读取 %s 的时长: %v", name, err)
	}

	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audio_files (name, size, duration_ms, created_at, last_access)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			size = excluded.size,
			duration_ms = excluded.duration_ms,
			created_at = excluded.created_at,
			last_access = excluded.last_access`,
		name, st.Size(), duration.Milliseconds(), now, now)
	if err != nil {
		return fmt.Errorf("写入索引失败: %w", err)
	}
	return nil
}

// Generated 实现 batch.Observer，错误只记录日志。
func (s *Store) Generated(ctx context.Context, path string) {
	if err := s.Track(ctx, path); err != nil {
		logger.Warnf("[store] 记录 %s 失败: %v", filepath.Base(path), err)
	}
}

// Resolve 返回 name 在输出目录中的路径，并刷新最后访问时间。
// 文件不存在时返回的错误满足 errors.Is(err, os.ErrNotExist)。
func (s *Store) Resolve(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE audio_files SET last_access = ? WHERE name = ?`, s.now().UnixNano(), name)
	if err != nil {
		logger.Warnf("[store] 更新 %s 访问时间失败: %v", name, err)
		return path, nil
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// 索引外的文件（如手动放入），补登记
		if err := s.Track(ctx, path); err != nil {
			logger.Warnf("[store] 登记 %s 失败: %v", name, err)
		}
	}
	return path, nil
}

// Lookup 返回 name 的索引记录。
func (s *Store) Lookup(ctx context.Context, name string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, size, duration_ms, created_at, last_access FROM audio_files WHERE name = ?`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// List 返回全部记录，最久未访问的在前。
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, size, duration_ms, created_at, last_access FROM audio_files ORDER BY last_access ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("查询索引失败: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup 按保留策略清理输出目录：
// 登记索引外的 MP3，移除文件已不存在的记录，删除超过 MaxAge 的文件，
// 最后按最久未访问的顺序淘汰，直到总大小不超过 MaxSize。
func (s *Store) Cleanup(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats

	adopted, err := s.adoptLocked(ctx)
	if err != nil {
		return stats, err
	}
	stats.Adopted = adopted

	entries, err := s.List(ctx)
	if err != nil {
		return stats, err
	}

	var cutoff time.Time
	if s.policy.MaxAge > 0 {
		cutoff = s.now().Add(-s.policy.MaxAge)
	}

	live := entries[:0]
	for _, e := range entries {
		path := filepath.Join(s.dir, e.Name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := s.forget(ctx, e.Name); err != nil {
				return stats, err
			}
			stats.Forgotten++
			continue
		}
		if !cutoff.IsZero() && e.CreatedAt.Before(cutoff) {
			if s.removeLocked(ctx, e.Name) {
				stats.Expired++
			}
			continue
		}
		live = append(live, e)
		stats.TotalSize += e.Size
	}

	if s.policy.MaxSize > 0 {
		// live 已按 last_access 升序
		for _, e := range live {
			if stats.TotalSize <= s.policy.MaxSize {
				break
			}
			if s.removeLocked(ctx, e.Name) {
				stats.TotalSize -= e.Size
				stats.Evicted++
			}
		}
	}

	if stats.Expired+stats.Evicted+stats.Forgotten > 0 {
		logger.Infof("[store] 清理完成: 过期 %d, 淘汰 %d, 失效记录 %d, 剩余 %.1f MB",
			stats.Expired, stats.Evicted, stats.Forgotten, float64(stats.TotalSize)/1024/1024)
	}
	return stats, nil
}

// Run 每隔 interval 执行一次 Cleanup，直到 ctx 取消。
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("[store] 清理失败: %v", err)
			}
		}
	}
}

// adoptLocked 登记输出目录中尚未进入索引的 MP3 文件。
func (s *Store) adoptLocked(ctx context.Context) (int, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取输出目录失败: %w", err)
	}

	adopted := 0
	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() || validateName(name) != nil || !strings.EqualFold(filepath.Ext(name), ".mp3") {
			continue
		}
		_, found, err := s.Lookup(ctx, name)
		if err != nil {
			return adopted, err
		}
		if found {
			continue
		}
		if err := s.Track(ctx, filepath.Join(s.dir, name)); err != nil {
			logger.Warnf("[store] 登记 %s 失败: %v", name, err)
			continue
		}
		adopted++
	}
	return adopted, nil
}

// removeLocked 删除文件及其记录，失败时记录日志并返回 false。
func (s *Store) removeLocked(ctx context.Context, name string) bool {
	path := filepath.Join(s.dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("[store] 删除文件失败: %s: %v", path, err)
		return false
	}
	if err := s.forget(ctx, name); err != nil {
		logger.Warnf("[store] 删除记录失败: %s: %v", name, err)
		return false
	}
	logger.Debugf("[store] 已删除 %s", name)
	return true
}

func (s *Store) forget(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_files WHERE name = ?`, name); err != nil {
		return fmt.Errorf("删除记录失败: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                     Entry
		durationMs            int64
		createdAt, lastAccess int64
	)
	if err := row.Scan(&e.Name, &e.Size, &durationMs, &createdAt, &lastAccess); err != nil {
		return Entry{}, err
	}
	e.Duration = time.Duration(durationMs) * time.Millisecond
	e.CreatedAt = time.Unix(0, createdAt)
	e.LastAccess = time.Unix(0, lastAccess)
	return e, nil
}

// validateName 只接受输出目录下的普通文件名，隐藏文件（包括索引数据库）不对外暴露。
func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
