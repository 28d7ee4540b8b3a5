package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	nlog "github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/metrics"
	"github.com/yeisme/skelvault/pkg/queue"
	"github.com/yeisme/skelvault/pkg/rule"
	"github.com/yeisme/skelvault/pkg/skeleton"
	"github.com/yeisme/skelvault/pkg/tracing"
)

// Uploaded 一次上传请求携带的 blob.
type Uploaded struct {
	// Received 由本次请求写入，上传被拒绝或失败时删除.
	Received []blob.Info
	// Referenced 客户端以 key 引用的已有对象（直传），上传被拒绝时保持不变，失败时只登记回收.
	Referenced []blob.Info
}

func (b Uploaded) all() []blob.Info {
	return append(append(make([]blob.Info, 0, len(b.Received)+len(b.Referenced)), b.Received...), b.Referenced...)
}

// Upload 为本次请求写入 blob 服务的对象创建文件条目.
//
// node 为空时条目为 weak：不挂在任何目录下，不锁定 blob，并立即登记待回收.
// 失败时已上传的 blob 会被删除.
func (m *FileModule) Upload(ctx context.Context, u *access.User, node string, blobs []blob.Info) (*Result, error) {
	return m.UploadBlobs(ctx, u, node, Uploaded{Received: blobs})
}

// UploadBlobs 同 Upload，区分本次写入与客户端引用的 blob.
func (m *FileModule) UploadBlobs(ctx context.Context, u *access.User, node string, in Uploaded) (*Result, error) {
	ctx, span := tracing.StartModuleSpan(ctx, m.Module, "upload", tracing.AttrKey.String(node))
	res, err := m.upload(ctx, u, node, in)
	tracing.End(span, err)

	return res, err
}

func (m *FileModule) upload(ctx context.Context, u *access.User, node string, in Uploaded) (*Result, error) {
	// 先做模块级检查，无权用户无法借 404/403 探测目录是否存在.
	if !m.Leaves.Guard.CanAdd(ctx, u, nil) {
		m.discard(ctx, in.Received, false)
		metrics.Uploads.WithLabelValues("forbidden").Inc()

		return nil, m.Leaves.deny("upload", ErrForbidden)
	}

	var parent *skeleton.Skeleton

	if node != "" {
		p, err := m.Store.Get(ctx, m.Nodes.Factory, node)
		if err != nil {
			m.discard(ctx, in.Received, false)

			if errors.Is(err, ErrNotFound) {
				metrics.Uploads.WithLabelValues("not_found").Inc()

				return nil, err
			}

			metrics.Uploads.WithLabelValues("error").Inc()

			return nil, fmt.Errorf("%w: %w", ErrInternal, err)
		}

		parent = p

		if !m.Leaves.Guard.CanAdd(ctx, u, parent) {
			m.discard(ctx, in.Received, false)
			metrics.Uploads.WithLabelValues("forbidden").Inc()

			return nil, m.Leaves.deny("upload", ErrForbidden)
		}
	}

	blobs := in.all()
	leaves := make([]*skeleton.Skeleton, 0, len(blobs))

	err := m.Store.Transaction(ctx, func(tx *EntityStore) error {
		for _, info := range blobs {
			leaf, err := m.newLeaf(ctx, info, parent)
			if err != nil {
				return err
			}

			if err := tx.Put(ctx, leaf); err != nil {
				return err
			}

			if parent == nil {
				if err := m.GC.Stage(ctx, tx.DB(), "weak upload", info.Key); err != nil {
					return err
				}
			}

			leaves = append(leaves, leaf)
		}

		return nil
	})
	if err != nil {
		nlog.Ctx(ctx).Error().Err(err).Int("blobs", len(blobs)).Msg("upload failed")
		m.discard(ctx, in.Received, true)
		m.stage(ctx, "upload failed", in.Referenced)
		metrics.Uploads.WithLabelValues("error").Inc()

		return nil, fmt.Errorf("%s upload: %w: %w", m.Module, ErrInternal, err)
	}

	metrics.Uploads.WithLabelValues("ok").Add(float64(len(leaves)))

	for i, leaf := range leaves {
		nlog.Ctx(ctx).Info().
			Str("leaf", leaf.Key).
			Str("blob", blobs[i].Key).
			Str("node", node).
			Bool("weak", parent == nil).
			Msg("file uploaded")

		m.Leaves.fire(ctx, EventAdded, u, leaf)
		m.publishUploaded(ctx, u, node, blobs[i], leaf)
	}

	return &Result{Action: ActionAddSuccess, Module: m.Module, Skels: leaves}, nil
}

func (m *FileModule) newLeaf(ctx context.Context, info blob.Info, parent *skeleton.Skeleton) (*skeleton.Skeleton, error) {
	servingURL := ""

	if info.IsImage() {
		if u, err := m.Blobs.ServingURL(ctx, info.Key); err == nil {
			servingURL = u
		} else {
			nlog.Ctx(ctx).Warn().Err(err).Str("blob", info.Key).Msg("serving url unavailable")
		}
	}

	leaf := m.Leaves.Factory.New()

	if err := leaf.SetValues(map[string]any{
		BoneName:       DecodeFileName(info.Filename),
		BoneSize:       float64(info.Size),
		BoneMimeType:   info.ContentType,
		BoneDLKey:      info.Key,
		BoneServingURL: servingURL,
		BoneWeak:       parent == nil,
	}); err != nil {
		return nil, err
	}

	if parent != nil {
		if err := SetParent(leaf, parent); err != nil {
			return nil, err
		}
	}

	return leaf, nil
}

// discard 删除本次上传的 blob，mark 时同时登记回收以防删除失败.
func (m *FileModule) discard(ctx context.Context, blobs []blob.Info, mark bool) {
	for _, info := range blobs {
		if err := m.Blobs.Delete(ctx, info.Key); err != nil {
			nlog.Ctx(ctx).Warn().Err(err).Str("blob", info.Key).Msg("discard blob failed")
		}
	}

	if mark {
		m.stage(ctx, "upload failed", blobs)
	}
}

// stage 登记回收；仍被引用的 key 会在 cleanup 时被放行.
func (m *FileModule) stage(ctx context.Context, reason string, blobs []blob.Info) {
	if len(blobs) == 0 {
		return
	}

	keys := make([]string, 0, len(blobs))
	for _, info := range blobs {
		keys = append(keys, info.Key)
	}

	if err := m.GC.Stage(ctx, m.Store.DB(), reason, keys...); err != nil {
		nlog.Ctx(ctx).Error().Err(err).Strs("blobs", keys).Msg("stage blobs failed")
	}
}

func (m *FileModule) publishUploaded(ctx context.Context, u *access.User, node string, info blob.Info, leaf *skeleton.Skeleton) {
	if m.pub == nil || !m.events.Enabled || !m.events.Blob.Uploaded {
		return
	}

	payload := queue.BlobUploadedPayload{
		Blob: queue.BlobRef{
			Key:         info.Key,
			Filename:    leaf.String(BoneName),
			ContentType: info.ContentType,
			Size:        info.Size,
		},
		LeafKey: leaf.Key,
		Node:    node,
		Weak:    leaf.Bool(BoneWeak),
		User:    userKey(u),
	}

	if err := queue.PublishBlobUploaded(m.pub, payload, publishOpts(ctx)...); err != nil {
		nlog.Ctx(ctx).Warn().Err(err).Str("blob", info.Key).Msg("publish blob uploaded failed")
	}
}

// Download 下载响应所需的内容与头部.
type Download struct {
	Info        blob.Info
	Body        io.ReadCloser
	ContentType string
	// Disposition 为空时内联展示.
	Disposition string
}

// Download 打开 blob，download 为 true 时以附件形式返回.
func (m *FileModule) Download(ctx context.Context, blobKey, fileName string, download bool) (*Download, error) {
	if blobKey == "" {
		return nil, fmt.Errorf("%s download: empty key: %w", m.Module, ErrNotAcceptable)
	}

	if rule.ValidateVar(blobKey, "entitykey") != nil {
		return nil, fmt.Errorf("%s download %s: malformed key: %w", m.Module, blobKey, ErrNotFound)
	}

	body, info, err := m.Blobs.Open(ctx, blobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("%s download %s: %w", m.Module, blobKey, ErrNotFound)
		}

		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	d := &Download{Info: info, Body: body, ContentType: info.ContentType}
	if d.ContentType == "" {
		d.ContentType = "application/octet-stream"
	}

	if download {
		if fileName == "" {
			fileName = info.Filename
		}

		d.Disposition = "attachment; filename=" + SanitizeFileName(fileName)
	}

	return d, nil
}
