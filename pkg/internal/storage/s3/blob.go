package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
)

const metaFilename = "Filename"

// BlobStore 基于 minio 的 blob 服务.
type BlobStore struct {
	client        *Client
	uploadTTL     time.Duration
	servingTTL    time.Duration
	maxUploadSize int64
}

// NewBlobStore 用已有客户端创建 blob 服务.
func NewBlobStore(client *Client, cfg configs.BlobConfig) *BlobStore {
	return &BlobStore{
		client:        client,
		uploadTTL:     cfg.UploadURLTTL,
		servingTTL:    cfg.ServingURLTTL,
		maxUploadSize: cfg.MaxUploadSize,
	}
}

func init() {
	blob.RegisterFactory(configs.BlobTypeMinio, func(ctx context.Context, cfg *configs.AppConfig) (blob.Store, error) {
		client, err := New(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}

		return NewBlobStore(client, cfg.Blob), nil
	})
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code

	return code == "NoSuchKey" || code == "NotFound"
}

// CreateUploadURL 生成预签名 POST 策略，key 预先分配.
// 上传成功后客户端以 blobkey=<fields.key> 调用 successPath 完成入库.
func (s *BlobStore) CreateUploadURL(ctx context.Context, successPath string) (*blob.UploadTarget, error) {
	key := blob.NewKey()
	expires := time.Now().Add(s.uploadTTL)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.client.Bucket()); err != nil {
		return nil, err
	}

	if err := policy.SetKey(key); err != nil {
		return nil, err
	}

	if err := policy.SetExpires(expires); err != nil {
		return nil, err
	}

	if err := policy.SetContentLengthRange(1, s.maxUploadSize); err != nil {
		return nil, err
	}

	if err := policy.SetSuccessStatusAction("201"); err != nil {
		return nil, err
	}

	u, fields, err := s.client.signer.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	fields["x-success-path"] = successPath

	return &blob.UploadTarget{URL: u.String(), Method: "POST", Fields: fields, Expires: expires}, nil
}

// Put 写入对象，文件名编码后存入用户元数据.
func (s *BlobStore) Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (blob.Info, error) {
	key := blob.NewKey()

	up, err := s.client.PutObject(ctx, s.client.Bucket(), key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{metaFilename: url.QueryEscape(filename)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("put object: %w", err)
	}

	return blob.Info{
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		Size:        up.Size,
		CreatedAt:   time.Now(),
	}, nil
}

func toInfo(oi minio.ObjectInfo) blob.Info {
	name := oi.UserMetadata[metaFilename]
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}

	if name == "" {
		name = oi.Key
	}

	return blob.Info{
		Key:         oi.Key,
		Filename:    name,
		ContentType: oi.ContentType,
		Size:        oi.Size,
		CreatedAt:   oi.LastModified,
	}
}

// Get 读取对象元数据.
func (s *BlobStore) Get(ctx context.Context, key string) (blob.Info, error) {
	oi, err := s.client.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}

		return blob.Info{}, fmt.Errorf("stat object: %w", err)
	}

	return toInfo(oi), nil
}

// Open 打开对象内容.
func (s *BlobStore) Open(ctx context.Context, key string) (io.ReadCloser, blob.Info, error) {
	info, err := s.Get(ctx, key)
	if err != nil {
		return nil, blob.Info{}, err
	}

	obj, err := s.client.GetObject(ctx, s.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, blob.Info{}, fmt.Errorf("get object: %w", err)
	}

	return obj, info, nil
}

// Delete 删除对象，对象不存在时 minio 同样返回成功.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}

		return fmt.Errorf("remove object: %w", err)
	}

	return nil
}

// ServingURL 返回预签名下载地址.
func (s *BlobStore) ServingURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.signer.PresignedGetObject(ctx, s.client.Bucket(), key, s.servingTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}

	return u.String(), nil
}

// List 列出对象.
func (s *BlobStore) List(ctx context.Context, limit int) ([]blob.Info, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []blob.Info

	for oi := range s.client.ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Recursive: true, WithMetadata: true}) {
		if oi.Err != nil {
			return nil, fmt.Errorf("list objects: %w", oi.Err)
		}

		out = append(out, toInfo(oi))
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

var _ blob.Store = (*BlobStore)(nil)
