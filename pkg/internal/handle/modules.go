package handle

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/internal/service"
)

// List 列出条目，query 参数作为过滤、排序与分页条件.
//
//	@Summary		列出条目
//	@Description	按 bone 名称过滤（name、name$lt、name$gt、name$lk），orderby/orderdir 排序，amount 与 cursor 分页
//	@Tags			模块
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Success		200		{object}	render.ListResponse
//	@Failure		401		{object}	map[string]string	"未授权"
//	@Router			/api/v1/{module}/list [get]
func (h *Handlers) List(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := params(c)
		if err != nil {
			badRequest(c, err)
			return
		}

		res, err := ctrl.List(c.Request.Context(), currentUser(c), service.FieldsFrom(p))
		h.respond(c, res, err)
	}
}

// View 查看单个条目，key 为 structure 时只返回结构.
//
//	@Summary		查看条目
//	@Tags			模块
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Param			key		path		string	true	"条目 key"
//	@Success		200		{object}	render.Response
//	@Failure		401		{object}	map[string]string	"未授权"
//	@Failure		404		{object}	map[string]string	"条目不存在"
//	@Router			/api/v1/{module}/view/{key} [get]
func (h *Handlers) View(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ctrl.View(c.Request.Context(), currentUser(c), c.Param("key"))
		h.respond(c, res, err)
	}
}

// Preview 校验输入但不保存.
//
//	@Summary		预览条目
//	@Tags			模块
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Param			skey	formData	string	true	"一次性 skey"
//	@Success		200		{object}	render.Response
//	@Failure		412		{object}	map[string]string	"skey 无效"
//	@Router			/api/v1/{module}/preview [post]
func (h *Handlers) Preview(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.request(c)
		if err != nil {
			badRequest(c, err)
			return
		}

		res, err := ctrl.Preview(c.Request.Context(), req)
		h.respond(c, res, err)
	}
}

// Add 新增条目；缺少输入、skey 或校验失败时回显表单.
//
//	@Summary		新增条目
//	@Tags			模块
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Param			skey	formData	string	false	"一次性 skey"
//	@Param			bounce	formData	string	false	"为 1 时只校验并回显"
//	@Success		200		{object}	render.Response
//	@Failure		401		{object}	map[string]string	"未授权"
//	@Failure		412		{object}	map[string]string	"skey 无效"
//	@Router			/api/v1/{module}/add [post]
func (h *Handlers) Add(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.request(c)
		if err != nil {
			badRequest(c, err)
			return
		}

		res, err := ctrl.Add(c.Request.Context(), req)
		h.respond(c, res, err)
	}
}

// Edit 修改条目.
//
//	@Summary		修改条目
//	@Tags			模块
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Param			key		path		string	true	"条目 key"
//	@Param			skey	formData	string	false	"一次性 skey"
//	@Success		200		{object}	render.Response
//	@Failure		401		{object}	map[string]string	"未授权"
//	@Failure		404		{object}	map[string]string	"条目不存在"
//	@Router			/api/v1/{module}/edit/{key} [post]
func (h *Handlers) Edit(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.request(c)
		if err != nil {
			badRequest(c, err)
			return
		}

		res, err := ctrl.Edit(c.Request.Context(), c.Param("key"), req)
		h.respond(c, res, err)
	}
}

// Delete 删除条目.
//
//	@Summary		删除条目
//	@Tags			模块
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Param			key		path		string	true	"条目 key"
//	@Param			skey	formData	string	true	"一次性 skey"
//	@Success		200		{object}	render.Response
//	@Failure		412		{object}	map[string]string	"skey 无效"
//	@Router			/api/v1/{module}/delete/{key} [post]
func (h *Handlers) Delete(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.request(c)
		if err != nil {
			badRequest(c, err)
			return
		}

		res, err := ctrl.Delete(c.Request.Context(), c.Param("key"), req)
		h.respond(c, res, err)
	}
}

// SetSortIndex 修改条目的排序索引.
//
//	@Summary		修改排序索引
//	@Tags			模块
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			module	path		string	true	"模块名称"
//	@Param			key		formData	string	true	"条目 key"
//	@Param			index	formData	number	true	"新的排序索引"
//	@Param			skey	formData	string	true	"一次性 skey"
//	@Success		200		{object}	render.Response
//	@Failure		406		{object}	map[string]string	"索引无效"
//	@Router			/api/v1/{module}/setSortIndex [post]
func (h *Handlers) SetSortIndex(ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.request(c)
		if err != nil {
			badRequest(c, err)
			return
		}

		res, err := ctrl.SetSortIndex(c.Request.Context(), c.Request.Form.Get("key"), c.Request.Form.Get("index"), req)
		h.respond(c, res, err)
	}
}
