package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/metrics"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// StructureKey view 的特殊 key，返回空 skeleton 用于输出结构.
const StructureKey = "structure"

// Action 渲染动作.
type Action string

const (
	ActionList          Action = "list"
	ActionView          Action = "view"
	ActionPreview       Action = "preview"
	ActionStructure     Action = "structure"
	ActionAdd           Action = "add"
	ActionEdit          Action = "edit"
	ActionAddSuccess    Action = "addSuccess"
	ActionEditSuccess   Action = "editSuccess"
	ActionDeleteSuccess Action = "deleteSuccess"
)

// Result 控制器的输出，由渲染器转换为响应.
type Result struct {
	Action Action
	Module string
	Skel   *skeleton.Skeleton
	// Skels 一次请求产生的多个条目，例如批量上传.
	Skels []*skeleton.Skeleton
	List  *skeleton.List
	// Factory 列表结果的结构来源.
	Factory *skeleton.Factory
}

// Request 一次变更请求的输入.
type Request struct {
	User    *access.User
	Session string
	Method  string
	SKey    string
	// Fields 客户端提交的字段，不含 skey 与 bounce.
	Fields map[string][]string
	Bounce bool
}

// ControlFields 不属于条目内容的请求参数.
var ControlFields = []string{"skey", "bounce"}

// FieldsFrom 从请求参数中去掉控制字段.
func FieldsFrom(params map[string][]string) map[string][]string {
	out := make(map[string][]string, len(params))

	for k, v := range params {
		control := false

		for _, c := range ControlFields {
			if k == c {
				control = true

				break
			}
		}

		if !control {
			out[k] = v
		}
	}

	return out
}

// Controller 单一实体类型的列表/查看/新增/修改/删除流程.
type Controller struct {
	Module  string
	Factory *skeleton.Factory
	Guard   access.Guard
	Policy  access.ViewPolicy
	Store   *EntityStore
	SKeys   *SecurityKeys
	Hooks   Hooks
}

// NewController 创建控制器，view 为 nil 时使用 ListFilterOnly.
func NewController(module string, f *skeleton.Factory, guard access.Guard, view access.ViewPolicy,
	store *EntityStore, skeys *SecurityKeys, hooks Hooks,
) *Controller {
	if view == nil {
		view = access.ListFilterOnly{}
	}

	return &Controller{
		Module:  module,
		Factory: f,
		Guard:   guard,
		Policy:  view,
		Store:   store,
		SKeys:   skeys,
		Hooks:   hooks,
	}
}

func (c *Controller) deny(action string, err error) error {
	metrics.GuardDenials.WithLabelValues(c.Module, action).Inc()

	return fmt.Errorf("%s %s: %w", c.Module, action, err)
}

func (c *Controller) fire(ctx context.Context, ev Event, u *access.User, skel *skeleton.Skeleton) {
	c.Hooks.Fire(ctx, HookEvent{Module: c.Module, Event: ev, User: u, Skel: skel})
}

// load 加载条目，存储错误以外的缺失统一为 ErrNotFound.
func (c *Controller) load(ctx context.Context, key string) (*skeleton.Skeleton, error) {
	skel, err := c.Store.Get(ctx, c.Factory, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return skel, nil
}

// List 列出条目，ListFilter 拒绝时返回 ErrUnauthorized.
func (c *Controller) List(ctx context.Context, u *access.User, filters map[string][]string) (*Result, error) {
	q := c.Guard.ListFilter(ctx, u, c.Factory.All().MergeExternalFilter(filters))
	if q == nil {
		return nil, c.deny("list", ErrUnauthorized)
	}

	list, err := c.Store.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &Result{Action: ActionList, Module: c.Module, List: list, Factory: c.Factory}, nil
}

// View 查看单个条目.
func (c *Controller) View(ctx context.Context, u *access.User, key string) (*Result, error) {
	if key == "" {
		return nil, fmt.Errorf("%s view: empty key: %w", c.Module, ErrNotAcceptable)
	}

	if key == StructureKey {
		skel := c.Factory.New()
		if !c.canView(ctx, u, skel) {
			return nil, c.deny("view", ErrUnauthorized)
		}

		return &Result{Action: ActionStructure, Module: c.Module, Skel: skel}, nil
	}

	var (
		skel *skeleton.Skeleton
		err  error
	)

	switch v := c.Policy.(type) {
	case access.CustomView:
		if skel, err = c.load(ctx, key); err != nil {
			return nil, err
		}

		if !v.CanView(ctx, u, skel) {
			return nil, c.deny("view", ErrUnauthorized)
		}
	default:
		q := c.Guard.ListFilter(ctx, u, c.Factory.All().Key(key))
		if q == nil {
			return nil, c.deny("view", ErrUnauthorized)
		}

		if skel, err = c.Store.First(ctx, q); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}

			return nil, fmt.Errorf("%w: %w", ErrInternal, err)
		}
	}

	c.fire(ctx, EventViewed, u, skel)

	return &Result{Action: ActionView, Module: c.Module, Skel: skel}, nil
}

// canView 结构视图使用的权限判断.
func (c *Controller) canView(ctx context.Context, u *access.User, skel *skeleton.Skeleton) bool {
	if v, ok := c.Policy.(access.CustomView); ok {
		return v.CanView(ctx, u, skel)
	}

	return c.Guard.ListFilter(ctx, u, c.Factory.All()) != nil
}

// Preview 仅在内存中校验输入.
func (c *Controller) Preview(ctx context.Context, req Request) (*Result, error) {
	if !c.Guard.CanPreview(ctx, req.User) {
		return nil, c.deny("preview", ErrUnauthorized)
	}

	if !c.SKeys.Validate(ctx, req.SKey, req.Session, false) {
		return nil, fmt.Errorf("%s preview: %w", c.Module, ErrPreconditionFailed)
	}

	skel := c.Factory.New()
	skel.FromClient(req.Fields)

	return &Result{Action: ActionPreview, Module: c.Module, Skel: skel}, nil
}

// shouldBounce 判断是否只回显表单：无输入、无 skey、非 POST、校验失败或显式 bounce.
func shouldBounce(req Request, valid bool) bool {
	return len(req.Fields) == 0 ||
		req.SKey == "" ||
		!strings.EqualFold(req.Method, http.MethodPost) ||
		!valid ||
		req.Bounce
}

// Add 新增条目.
func (c *Controller) Add(ctx context.Context, req Request) (*Result, error) {
	if !c.Guard.CanAdd(ctx, req.User, nil) {
		return nil, c.deny("add", ErrUnauthorized)
	}

	return c.AddWith(ctx, req, nil)
}

// AddWith 在权限已确认后执行新增，prepare 在持久化前补充服务端字段.
func (c *Controller) AddWith(ctx context.Context, req Request, prepare func(*skeleton.Skeleton) error) (*Result, error) {
	skel := c.Factory.New()

	valid := false
	if len(req.Fields) > 0 {
		valid = skel.FromClient(req.Fields)
	}

	if shouldBounce(req, valid) {
		return &Result{Action: ActionAdd, Module: c.Module, Skel: skel}, nil
	}

	if !c.SKeys.Validate(ctx, req.SKey, req.Session, true) {
		return nil, fmt.Errorf("%s add: %w", c.Module, ErrPreconditionFailed)
	}

	if prepare != nil {
		if err := prepare(skel); err != nil {
			return nil, err
		}
	}

	if err := c.Store.Put(ctx, skel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	c.fire(ctx, EventAdded, req.User, skel)

	return &Result{Action: ActionAddSuccess, Module: c.Module, Skel: skel}, nil
}

// Edit 修改条目.
func (c *Controller) Edit(ctx context.Context, key string, req Request) (*Result, error) {
	if key == "" {
		return nil, fmt.Errorf("%s edit: empty key: %w", c.Module, ErrNotAcceptable)
	}

	skel, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if !c.Guard.CanEdit(ctx, req.User, skel) {
		return nil, c.deny("edit", ErrUnauthorized)
	}

	valid := false
	if len(req.Fields) > 0 {
		valid = skel.FromClient(req.Fields)
	}

	if shouldBounce(req, valid) {
		return &Result{Action: ActionEdit, Module: c.Module, Skel: skel}, nil
	}

	if !c.SKeys.Validate(ctx, req.SKey, req.Session, true) {
		return nil, fmt.Errorf("%s edit: %w", c.Module, ErrPreconditionFailed)
	}

	if err := c.Store.Put(ctx, skel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	c.fire(ctx, EventEdited, req.User, skel)

	return &Result{Action: ActionEditSuccess, Module: c.Module, Skel: skel}, nil
}

// Delete 删除条目.
func (c *Controller) Delete(ctx context.Context, key string, req Request) (*Result, error) {
	return c.DeleteWith(ctx, key, req, nil)
}

// DeleteWith 删除条目，remove 非空时替代默认的软删除.
func (c *Controller) DeleteWith(ctx context.Context, key string, req Request,
	remove func(ctx context.Context, skel *skeleton.Skeleton) error,
) (*Result, error) {
	skel, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if !c.Guard.CanDelete(ctx, req.User, skel) {
		return nil, c.deny("delete", ErrUnauthorized)
	}

	if !c.SKeys.Validate(ctx, req.SKey, req.Session, true) {
		return nil, fmt.Errorf("%s delete: %w", c.Module, ErrPreconditionFailed)
	}

	if remove == nil {
		remove = c.Store.Delete
	}

	if err := remove(ctx, skel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	c.fire(ctx, EventDeleted, req.User, skel)

	return &Result{Action: ActionDeleteSuccess, Module: c.Module, Skel: skel}, nil
}

// SetSortIndex 修改条目的排序索引.
func (c *Controller) SetSortIndex(ctx context.Context, key, index string, req Request) (*Result, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(index), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%s setSortIndex: %q: %w", c.Module, index, ErrNotAcceptable)
	}

	skel, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if !c.Guard.CanEdit(ctx, req.User, skel) {
		return nil, c.deny("setSortIndex", ErrUnauthorized)
	}

	if !c.SKeys.Validate(ctx, req.SKey, req.Session, true) {
		return nil, fmt.Errorf("%s setSortIndex: %w", c.Module, ErrPreconditionFailed)
	}

	skel.SetSortIndex(value)

	if err := c.Store.Put(ctx, skel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	c.fire(ctx, EventEdited, req.User, skel)

	return &Result{Action: ActionEditSuccess, Module: c.Module, Skel: skel}, nil
}
