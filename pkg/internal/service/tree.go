package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// 树形模块的两类条目.
const (
	SkelTypeNode = "node"
	SkelTypeLeaf = "leaf"
)

// 树形条目共有的字段.
const (
	BoneParentDir  = "parentdir"
	BoneParentRepo = "parentrepo"
)

// TreeBones 返回 parentdir / parentrepo 字段定义.
func TreeBones() []skeleton.Bone {
	return []skeleton.Bone{
		skeleton.NewStringBone(skeleton.BaseBone{Name: BoneParentDir, Descr: "Parent directory", ReadOnly: true, Indexed: true}),
		skeleton.NewStringBone(skeleton.BaseBone{Name: BoneParentRepo, Descr: "Repository", ReadOnly: true, Indexed: true}),
	}
}

// LeafDeleteFunc 在同一事务中删除叶子之前执行.
type LeafDeleteFunc func(ctx context.Context, tx *EntityStore, leaf *skeleton.Skeleton) error

// Tree 由目录节点与叶子组成的层级模块.
type Tree struct {
	Module string
	Nodes  *Controller
	Leaves *Controller
	Store  *EntityStore
	// OnLeafDelete 可为空.
	OnLeafDelete LeafDeleteFunc
}

// Controller 按 skelType 选择控制器.
func (t *Tree) Controller(skelType string) (*Controller, error) {
	switch skelType {
	case SkelTypeNode:
		return t.Nodes, nil
	case SkelTypeLeaf:
		return t.Leaves, nil
	default:
		return nil, fmt.Errorf("%s: invalid skelType %q: %w", t.Module, skelType, ErrNotAcceptable)
	}
}

func (t *Tree) List(ctx context.Context, u *access.User, skelType string, filters map[string][]string) (*Result, error) {
	c, err := t.Controller(skelType)
	if err != nil {
		return nil, err
	}

	return c.List(ctx, u, filters)
}

func (t *Tree) View(ctx context.Context, u *access.User, skelType, key string) (*Result, error) {
	c, err := t.Controller(skelType)
	if err != nil {
		return nil, err
	}

	return c.View(ctx, u, key)
}

func (t *Tree) Preview(ctx context.Context, skelType string, req Request) (*Result, error) {
	c, err := t.Controller(skelType)
	if err != nil {
		return nil, err
	}

	return c.Preview(ctx, req)
}

func (t *Tree) Edit(ctx context.Context, skelType, key string, req Request) (*Result, error) {
	c, err := t.Controller(skelType)
	if err != nil {
		return nil, err
	}

	return c.Edit(ctx, key, req)
}

// Add 在目录节点 node 下新增条目.
func (t *Tree) Add(ctx context.Context, skelType, node string, req Request) (*Result, error) {
	c, err := t.Controller(skelType)
	if err != nil {
		return nil, err
	}

	parent, err := t.Nodes.load(ctx, node)
	if err != nil {
		return nil, err
	}

	if !c.Guard.CanAdd(ctx, req.User, parent) {
		return nil, c.deny("add", ErrUnauthorized)
	}

	return c.AddWith(ctx, req, func(skel *skeleton.Skeleton) error {
		return SetParent(skel, parent)
	})
}

// SetParent 将条目挂到目录节点下.
func SetParent(skel, parent *skeleton.Skeleton) error {
	return skel.SetValues(map[string]any{
		BoneParentDir:  parent.Key,
		BoneParentRepo: parent.String(BoneParentRepo),
	})
}

// Delete 删除叶子或递归删除目录节点.
func (t *Tree) Delete(ctx context.Context, skelType, key string, req Request) (*Result, error) {
	c, err := t.Controller(skelType)
	if err != nil {
		return nil, err
	}

	if skelType == SkelTypeLeaf {
		return c.DeleteWith(ctx, key, req, func(ctx context.Context, leaf *skeleton.Skeleton) error {
			return t.Store.Transaction(ctx, func(tx *EntityStore) error {
				return t.deleteLeaf(ctx, tx, leaf)
			})
		})
	}

	return c.DeleteWith(ctx, key, req, func(ctx context.Context, node *skeleton.Skeleton) error {
		return t.Store.Transaction(ctx, func(tx *EntityStore) error {
			if err := t.deleteChildren(ctx, tx, node.Key); err != nil {
				return err
			}

			return tx.Delete(ctx, node)
		})
	})
}

func (t *Tree) deleteLeaf(ctx context.Context, tx *EntityStore, leaf *skeleton.Skeleton) error {
	if t.OnLeafDelete != nil {
		if err := t.OnLeafDelete(ctx, tx, leaf); err != nil {
			return err
		}
	}

	return tx.Delete(ctx, leaf)
}

// deleteChildren 深度优先删除 parent 下的全部叶子与子节点.
func (t *Tree) deleteChildren(ctx context.Context, tx *EntityStore, parent string) error {
	for {
		list, err := tx.Fetch(ctx, t.Leaves.Factory.All().Filter(BoneParentDir, skeleton.OpEq, parent).Limit(skeleton.MaxAmount))
		if err != nil {
			return err
		}

		if len(list.Skels) == 0 {
			break
		}

		for _, leaf := range list.Skels {
			if err := t.deleteLeaf(ctx, tx, leaf); err != nil {
				return err
			}
		}
	}

	for {
		list, err := tx.Fetch(ctx, t.Nodes.Factory.All().Filter(BoneParentDir, skeleton.OpEq, parent).Limit(skeleton.MaxAmount))
		if err != nil {
			return err
		}

		if len(list.Skels) == 0 {
			return nil
		}

		for _, node := range list.Skels {
			if node.Key == parent {
				return fmt.Errorf("node %s is its own parent: %w", parent, ErrInternal)
			}

			if err := t.deleteChildren(ctx, tx, node.Key); err != nil {
				return err
			}

			if err := tx.Delete(ctx, node); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
	}
}

// Children 返回 parent 下的子目录与叶子，均按名称排序.
func (t *Tree) Children(ctx context.Context, parent string) (nodes, leaves []*skeleton.Skeleton, err error) {
	fetch := func(c *Controller) ([]*skeleton.Skeleton, error) {
		q := c.Factory.All().
			Filter(BoneParentDir, skeleton.OpEq, parent).
			Order(BoneName, false).
			Limit(skeleton.MaxAmount)

		list, err := t.Store.Fetch(ctx, q)
		if err != nil {
			return nil, err
		}

		return list.Skels, nil
	}

	if nodes, err = fetch(t.Nodes); err != nil {
		return nil, nil, err
	}

	if leaves, err = fetch(t.Leaves); err != nil {
		return nil, nil, err
	}

	return nodes, leaves, nil
}
