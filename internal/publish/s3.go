// Package publish 把生成的音频镜像到 S3 兼容的对象存储。
package publish

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultUploadTimeout = 2 * time.Minute

// Config S3 镜像配置。
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
	Timeout   time.Duration
}

// S3Publisher 上传生成的文件，可作为 batch.Observer 使用。
type S3Publisher struct {
	client  *minio.Client
	bucket  string
	prefix  string
	host    string
	timeout time.Duration
}

// NewS3Publisher 创建上传器，不访问网络。
func NewS3Publisher(cfg Config) (*S3Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("[publish] S3 镜像需要 endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("[publish] S3 镜像需要 bucket")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultUploadTimeout
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("[publish] 初始化 S3 客户端失败: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	return &S3Publisher{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		host:    fmt.Sprintf("%s://%s", scheme, cfg.Endpoint),
		timeout: cfg.Timeout,
	}, nil
}

// CheckBucket 确认 bucket 存在。
func (p *S3Publisher) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("[publish] 检查 bucket 失败: %w", err)
	}
	if !exists {
		return fmt.Errorf("[publish] bucket %q 不存在", p.bucket)
	}
	return nil
}

// Upload 上传 localPath，返回对象的访问地址。
func (p *S3Publisher) Upload(ctx context.Context, localPath string) (string, error) {
	key := p.objectKey(filepath.Base(localPath))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  "audio/mpeg",
		UserMetadata: map[string]string{"uploaded-at": time.Now().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("[publish] 上传 %s 失败: %w", key, err)
	}
	return p.publicURL(key), nil
}

// Generated 实现 batch.Observer。上传不受调用方取消影响，失败只记录日志。
func (p *S3Publisher) Generated(ctx context.Context, localPath string) {
	u, err := p.Upload(context.WithoutCancel(ctx), localPath)
	if err != nil {
		logger.Warnf("%v", err)
		return
	}
	logger.Infof("[publish] 已上传: %s", u)
}

func (p *S3Publisher) objectKey(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

func (p *S3Publisher) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", p.host, p.bucket, (&url.URL{Path: key}).EscapedPath())
}
