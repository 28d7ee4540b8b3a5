package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	nlog "github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// 文件模块的两种 kind.
const (
	FileNodeKind = "file_rootNode"
	FileLeafKind = "file"
)

// 文件条目字段.
const (
	BoneName       = "name"
	BoneSize       = "size"
	BoneDLKey      = "dlkey"
	BoneMimeType   = "mimetype"
	BoneServingURL = "servingurl"
	BoneWeak       = "weak"
	BoneRootNode   = "rootnode"
	BoneUser       = "user"
)

// FileNodeFactory 目录节点.
func FileNodeFactory() *skeleton.Factory {
	bones := append([]skeleton.Bone{
		skeleton.NewStringBone(skeleton.BaseBone{Name: BoneName, Descr: "Name", Required: true, Indexed: true, Searchable: true}),
		skeleton.NewBoolBone(skeleton.BaseBone{Name: BoneRootNode, Descr: "Is root node", ReadOnly: true, Indexed: true}),
		skeleton.NewStringBone(skeleton.BaseBone{Name: BoneUser, Descr: "Owner", ReadOnly: true, Indexed: true}),
	}, TreeBones()...)

	return skeleton.MustFactory(configs.FileModuleName, FileNodeKind, bones...)
}

// FileLeafFactory 文件条目，weak 条目不锁定 blob.
func FileLeafFactory() *skeleton.Factory {
	name := skeleton.NewStringBone(skeleton.BaseBone{Name: BoneName, Descr: "Filename", Required: true, Indexed: true, Searchable: true})
	name.CaseSensitive = false

	serving := skeleton.NewStringBone(skeleton.BaseBone{Name: BoneServingURL, Descr: "Serving URL", ReadOnly: true})
	serving.MaxLength = 0

	bones := append([]skeleton.Bone{
		name,
		skeleton.NewNumericBone(skeleton.BaseBone{Name: BoneSize, Descr: "Size", ReadOnly: true, Indexed: true}, 0),
		skeleton.NewFileBone(skeleton.BaseBone{Name: BoneDLKey, Descr: "Download key", ReadOnly: true, Indexed: true}),
		skeleton.NewStringBone(skeleton.BaseBone{Name: BoneMimeType, Descr: "Mime type", ReadOnly: true, Indexed: true}),
		serving,
		skeleton.NewBoolBone(skeleton.BaseBone{Name: BoneWeak, Descr: "Weak reference", ReadOnly: true, Indexed: true}),
	}, TreeBones()...)

	return skeleton.MustFactory(configs.FileModuleName, FileLeafKind, bones...).
		WithLockPolicy(func(s *skeleton.Skeleton) []string {
			if s.Bool(BoneWeak) {
				return nil
			}

			return []string{s.String(BoneDLKey)}
		})
}

// FileModule 文件树：目录节点、文件条目、上传下载与 blob 回收.
type FileModule struct {
	*Tree

	Blobs blob.Store
	GC    *BlobGC
	// BasePath 模块路由前缀，例如 /api/v1.
	BasePath string

	pub    message.Publisher
	events configs.EventsConfig
}

// NewFileModule 创建文件模块.
func NewFileModule(table *access.Table, store *EntityStore, skeys *SecurityKeys, blobs blob.Store,
	gc *BlobGC, basePath string, hooks Hooks,
) *FileModule {
	guard := NewFileGuard(configs.FileModuleName, table)

	m := &FileModule{
		Tree: &Tree{
			Module: configs.FileModuleName,
			Nodes:  NewController(configs.FileModuleName, FileNodeFactory(), guard, nil, store, skeys, hooks),
			Leaves: NewController(configs.FileModuleName, FileLeafFactory(), guard, nil, store, skeys, hooks),
			Store:  store,
		},
		Blobs:    blobs,
		GC:       gc,
		BasePath: basePath,
	}

	m.OnLeafDelete = func(ctx context.Context, tx *EntityStore, leaf *skeleton.Skeleton) error {
		return m.GC.Stage(ctx, tx.DB(), "leaf deleted", leaf.String(BoneDLKey))
	}

	return m
}

// WithPublisher 发布上传事件.
func (m *FileModule) WithPublisher(pub message.Publisher, events configs.EventsConfig) *FileModule {
	m.pub = pub
	m.events = events

	return m
}

// Path 返回模块下某个动作的地址.
func (m *FileModule) Path(action string, args ...string) string {
	p := m.BasePath + "/" + configs.FileModuleName + "/" + action
	for _, a := range args {
		p += "/" + url.PathEscape(a)
	}

	return p
}

// Add 只允许新建目录节点，文件条目通过上传产生.
func (m *FileModule) Add(ctx context.Context, skelType, node string, req Request) (*Result, error) {
	if skelType != SkelTypeNode {
		return nil, fmt.Errorf("%s add: only nodes can be added: %w", m.Module, ErrNotAcceptable)
	}

	return m.Tree.Add(ctx, skelType, node, req)
}

// View 条目不存在时，若参数是现有 blob 的 key 则重定向到下载.
func (m *FileModule) View(ctx context.Context, u *access.User, skelType, key string) (*Result, error) {
	res, err := m.Tree.View(ctx, u, skelType, key)
	if err == nil || !(errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAcceptable)) {
		return res, err
	}

	for _, candidate := range []string{skelType, key} {
		if !skeleton.IsBlobKey(candidate) {
			continue
		}

		if _, gerr := m.Blobs.Get(ctx, candidate); gerr == nil {
			return nil, &RedirectError{Location: m.Path("download", candidate)}
		}
	}

	return nil, err
}

// EnsureRootNode 返回用户的个人根目录，不存在时创建.
func (m *FileModule) EnsureRootNode(ctx context.Context, u *access.User) (*skeleton.Skeleton, error) {
	if u == nil {
		return nil, fmt.Errorf("%s root node: %w", m.Module, ErrUnauthorized)
	}

	key := RootNodeKey(u.Key)

	node, err := m.Store.Get(ctx, m.Nodes.Factory, key)
	if err == nil {
		return node, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	name := u.Name
	if name == "" {
		name = u.Key
	}

	node = m.Nodes.Factory.New()
	node.Key = key

	if err := node.SetValues(map[string]any{
		BoneName:       name,
		BoneRootNode:   true,
		BoneUser:       u.Key,
		BoneParentRepo: key,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if err := m.Store.Put(ctx, node); err != nil {
		// 并发请求可能已创建同一个 key.
		if existing, gerr := m.Store.Get(ctx, m.Nodes.Factory, key); gerr == nil {
			return existing, nil
		}

		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	nlog.Ctx(ctx).Info().Str("user", u.Key).Str("node", key).Msg("root node created")

	return node, nil
}

// RootNodeRef getAvailableRootNodes 的单项.
type RootNodeRef struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// OwnRootNodeName 个人根目录的显示名.
const OwnRootNodeName = "My files"

// AvailableRootNodes 返回可用的根目录，个人根目录在前；root 用户还能看到其他用户的根目录.
func (m *FileModule) AvailableRootNodes(ctx context.Context, u *access.User) ([]RootNodeRef, error) {
	if u == nil {
		return []RootNodeRef{}, nil
	}

	own, err := m.EnsureRootNode(ctx, u)
	if err != nil {
		return nil, err
	}

	refs := []RootNodeRef{{Name: OwnRootNodeName, Key: own.Key}}

	if !u.IsRoot() {
		return refs, nil
	}

	q := m.Nodes.Factory.All().
		Filter(BoneRootNode, skeleton.OpEq, "1").
		Order(BoneName, false).
		Limit(skeleton.MaxAmount)

	list, err := m.Store.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	for _, node := range list.Skels {
		if node.Key == own.Key {
			continue
		}

		refs = append(refs, RootNodeRef{Name: node.String(BoneName), Key: node.Key})
	}

	return refs, nil
}

// UploadURL 返回直传目标.
func (m *FileModule) UploadURL(ctx context.Context, req Request) (*blob.UploadTarget, error) {
	if !m.Leaves.Guard.CanAdd(ctx, req.User, nil) {
		return nil, m.Leaves.deny("getUploadURL", ErrForbidden)
	}

	if !m.Leaves.SKeys.Validate(ctx, req.SKey, req.Session, false) {
		return nil, fmt.Errorf("%s getUploadURL: %w", m.Module, ErrPreconditionFailed)
	}

	target, err := m.Blobs.CreateUploadURL(ctx, m.Path("upload"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return target, nil
}
