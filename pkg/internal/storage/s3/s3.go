// Package s3 基于 minio-go 的 blob 服务实现.
package s3

import (
	"context"
	"fmt"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/skelvault/pkg/configs"
	nlog "github.com/yeisme/skelvault/pkg/log"
)

// Client 包装 MinIO 客户端.
//
// signer 只用于生成预签名地址，配置了 PublicURL 时指向对外地址，否则与 Client 相同.
type Client struct {
	*minio.Client

	signer *minio.Client
	bucket string
}

// splitEndpoint 去掉 scheme，https 时强制 secure.
func splitEndpoint(endpoint string, secure bool) (string, bool) {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host, secure || u.Scheme == "https"
	}

	return endpoint, secure
}

func newMinio(cfg *configs.S3Config, endpoint string) (*minio.Client, error) {
	host, secure := splitEndpoint(endpoint, cfg.UseSSL)

	// 固定 Region，预签名时不会向服务端查询桶所在区域
	cli, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client %s: %w", host, err)
	}

	cli.SetAppInfo("skelvault", configs.AppVersion)

	return cli, nil
}

// New 初始化 MinIO 客户端，bucket 不存在时创建.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	cli, err := newMinio(cfg, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	signer := cli
	if cfg.PublicURL != "" {
		if signer, err = newMinio(cfg, cfg.PublicURL); err != nil {
			return nil, err
		}
	}

	l := nlog.Component("s3")

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}

		l.Info().Str("bucket", cfg.BucketName).Msg("bucket created")
	}

	l.Info().
		Str("endpoint", cli.EndpointURL().String()).
		Str("public", signer.EndpointURL().String()).
		Str("bucket", cfg.BucketName).
		Msg("s3 connected")

	return &Client{Client: cli, signer: signer, bucket: cfg.BucketName}, nil
}

// Bucket 返回使用的存储桶.
func (c *Client) Bucket() string {
	return c.bucket
}
