// Package render 将控制器结果输出为 JSON 响应.
package render

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// Response 单个条目的响应体.
type Response struct {
	Action    service.Action       `json:"action"`
	Module    string               `json:"module"`
	Values    map[string]any       `json:"values,omitempty"`
	Errors    map[string]string    `json:"errors,omitempty"`
	Structure []skeleton.Structure `json:"structure,omitempty"`
}

// ListResponse 列表响应体.
type ListResponse struct {
	Action    service.Action       `json:"action"`
	Module    string               `json:"module"`
	SkelList  []map[string]any     `json:"skellist"`
	Cursor    string               `json:"cursor,omitempty"`
	Structure []skeleton.Structure `json:"structure,omitempty"`
}

// Renderer JSON 渲染器.
type Renderer struct{}

// New 创建渲染器.
func New() *Renderer {
	return &Renderer{}
}

func single(action service.Action, module string, skel *skeleton.Skeleton, withStructure bool) Response {
	out := Response{Action: action, Module: module}
	if skel == nil {
		return out
	}

	out.Values = skel.Values()
	out.Errors = skel.Errors()

	if withStructure {
		out.Structure = skel.Factory().Structure()
	}

	return out
}

func values(skels []*skeleton.Skeleton) []map[string]any {
	out := make([]map[string]any, 0, len(skels))
	for _, s := range skels {
		out = append(out, s.Values())
	}

	return out
}

// View 输出单个条目.
func (r *Renderer) View(c *gin.Context, module string, skel *skeleton.Skeleton) {
	c.JSON(http.StatusOK, single(service.ActionView, module, skel, true))
}

// Preview 输出预览结果，包含字段错误.
func (r *Renderer) Preview(c *gin.Context, module string, skel *skeleton.Skeleton) {
	c.JSON(http.StatusOK, single(service.ActionPreview, module, skel, true))
}

// Structure 只输出结构.
func (r *Renderer) Structure(c *gin.Context, module string, f *skeleton.Factory) {
	c.JSON(http.StatusOK, Response{Action: service.ActionStructure, Module: module, Structure: f.Structure()})
}

// List 输出列表.
func (r *Renderer) List(c *gin.Context, module string, f *skeleton.Factory, list *skeleton.List) {
	out := ListResponse{Action: service.ActionList, Module: module, SkelList: []map[string]any{}}
	if list != nil {
		out.SkelList = values(list.Skels)
		out.Cursor = list.Cursor
	}

	if f != nil {
		out.Structure = f.Structure()
	}

	c.JSON(http.StatusOK, out)
}

// Add 回显新增表单.
func (r *Renderer) Add(c *gin.Context, module string, skel *skeleton.Skeleton) {
	c.JSON(http.StatusOK, single(service.ActionAdd, module, skel, true))
}

// Edit 回显修改表单.
func (r *Renderer) Edit(c *gin.Context, module string, skel *skeleton.Skeleton) {
	c.JSON(http.StatusOK, single(service.ActionEdit, module, skel, true))
}

// AddItemSuccess 新增成功.
func (r *Renderer) AddItemSuccess(c *gin.Context, module string, skel *skeleton.Skeleton) {
	c.JSON(http.StatusOK, single(service.ActionAddSuccess, module, skel, false))
}

// AddItemsSuccess 一次新增多个条目，例如批量上传.
func (r *Renderer) AddItemsSuccess(c *gin.Context, module string, skels []*skeleton.Skeleton) {
	c.JSON(http.StatusOK, ListResponse{Action: service.ActionAddSuccess, Module: module, SkelList: values(skels)})
}

// EditItemSuccess 修改成功.
func (r *Renderer) EditItemSuccess(c *gin.Context, module string, skel *skeleton.Skeleton) {
	c.JSON(http.StatusOK, single(service.ActionEditSuccess, module, skel, false))
}

// DeleteSuccess 删除成功.
func (r *Renderer) DeleteSuccess(c *gin.Context, module string, skel *skeleton.Skeleton) {
	out := Response{Action: service.ActionDeleteSuccess, Module: module}
	if skel != nil {
		out.Values = map[string]any{skeleton.KeyField: skel.Key}
	}

	c.JSON(http.StatusOK, out)
}

// Render 按结果的 Action 分派.
func (r *Renderer) Render(c *gin.Context, res *service.Result) {
	switch res.Action {
	case service.ActionList:
		r.List(c, res.Module, res.Factory, res.List)
	case service.ActionView:
		r.View(c, res.Module, res.Skel)
	case service.ActionPreview:
		r.Preview(c, res.Module, res.Skel)
	case service.ActionStructure:
		r.Structure(c, res.Module, res.Skel.Factory())
	case service.ActionAdd:
		r.Add(c, res.Module, res.Skel)
	case service.ActionEdit:
		r.Edit(c, res.Module, res.Skel)
	case service.ActionAddSuccess:
		if len(res.Skels) > 0 {
			r.AddItemsSuccess(c, res.Module, res.Skels)

			return
		}

		r.AddItemSuccess(c, res.Module, res.Skel)
	case service.ActionEditSuccess:
		r.EditItemSuccess(c, res.Module, res.Skel)
	case service.ActionDeleteSuccess:
		r.DeleteSuccess(c, res.Module, res.Skel)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown action " + string(res.Action)})
	}
}

// Error 输出错误，RedirectError 转为 302.
func (r *Renderer) Error(c *gin.Context, err error) {
	status := service.StatusCode(err)
	if status == http.StatusFound {
		var redirect *service.RedirectError
		if errors.As(err, &redirect) {
			c.Redirect(http.StatusFound, redirect.Location)

			return
		}
	}

	c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status), "message": err.Error()})
}
