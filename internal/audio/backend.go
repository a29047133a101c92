package audio

import "context"

// Backend 是一种具体的播放方式。
type Backend interface {
	Play(ctx context.Context, path string) error
}

// BackendFunc 让普通函数满足 Backend 接口。
type BackendFunc func(ctx context.Context, path string) error

// Play 实现 Backend。
func (f BackendFunc) Play(ctx context.Context, path string) error { return f(ctx, path) }
