package service

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"gorm.io/gorm"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// ActiveBone public 视图依据的字段.
const ActiveBone = "active"

// Deps 构建模块所需的存储与配置.
type Deps struct {
	DB        *gorm.DB
	KV        kv.KVStore
	Blobs     blob.Store
	Publisher message.Publisher // 可为空
	Config    *configs.AppConfig
}

// Registry 启动时按模块声明构建的全部控制器.
type Registry struct {
	Table *access.Table
	Store *EntityStore
	SKeys *SecurityKeys
	Users *UserStore
	File  *FileModule
	GC    *BlobGC

	names []string
	lists map[string]*Controller
}

// NewRegistry 生成权限表、列表模块与文件模块.
func NewRegistry(d Deps) (*Registry, error) {
	cfg := d.Config

	names := []string{configs.FileModuleName}
	for _, mc := range cfg.Modules {
		names = append(names, mc.Name)
	}

	r := &Registry{
		Table: access.NewTable(names...),
		Store: NewEntityStore(d.DB),
		SKeys: NewSecurityKeys(d.KV, cfg.Security),
		lists: make(map[string]*Controller, len(cfg.Modules)),
	}

	r.Users = NewUserStore(d.DB, r.Table)

	hooks := Hooks{AuditHook(nlog.Component("audit"))}
	if d.Publisher != nil {
		hooks = append(hooks, EventHook(d.Publisher, cfg.Events))
	}

	for _, mc := range cfg.Modules {
		f, err := skeleton.FromConfig(mc)
		if err != nil {
			return nil, err
		}

		guard := access.NewModuleGuard(mc.Name, r.Table)

		var view access.ViewPolicy = access.ListFilterOnly{}

		if mc.View == configs.ViewPublic {
			if b, ok := f.Bone(ActiveBone); !ok || b.Type() != skeleton.TypeBool {
				return nil, fmt.Errorf("module %s: public view needs a bool bone %q", mc.Name, ActiveBone)
			}

			view = access.PublicActive(guard, ActiveBone)
		}

		r.lists[mc.Name] = NewController(mc.Name, f, guard, view, r.Store, r.SKeys, hooks)
		r.names = append(r.names, mc.Name)
	}

	r.GC = NewBlobGC(r.Store, d.Blobs, FileLeafKind, cfg.GC).WithPublisher(d.Publisher, cfg.Events)
	r.File = NewFileModule(r.Table, r.Store, r.SKeys, d.Blobs, r.GC, cfg.Server.BasePath, hooks).
		WithPublisher(d.Publisher, cfg.Events)

	return r, nil
}

// List 返回列表模块的控制器.
func (r *Registry) List(name string) (*Controller, bool) {
	c, ok := r.lists[name]

	return c, ok
}

// ListModules 按声明顺序返回列表模块名.
func (r *Registry) ListModules() []string {
	return append([]string(nil), r.names...)
}

// Factories 返回所有实体类型，文件模块在前.
func (r *Registry) Factories() []*skeleton.Factory {
	out := []*skeleton.Factory{r.File.Nodes.Factory, r.File.Leaves.Factory}
	for _, name := range r.names {
		out = append(out, r.lists[name].Factory)
	}

	return out
}
