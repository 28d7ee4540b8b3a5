package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SKey 为当前会话签发一次性 skey.
//
//	@Summary		获取 skey
//	@Description	返回绑定当前会话的一次性 skey，用于 add/edit/delete 等变更请求
//	@Tags			系统
//	@Produce		json
//	@Success		200	{object}	map[string]string	"skey"
//	@Failure		500	{object}	map[string]string	"服务器内部错误"
//	@Router			/api/v1/skey [get]
func (h *Handlers) SKey(c *gin.Context) {
	token, err := h.Registry.SKeys.Create(c.Request.Context(), h.session(c))
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"skey": token})
}

// SessionSKey 返回会话级 skey，可重复用于 preview 与 getUploadURL.
//
//	@Summary		获取会话 skey
//	@Tags			系统
//	@Produce		json
//	@Success		200	{object}	map[string]string	"skey"
//	@Router			/api/v1/skey/session [get]
func (h *Handlers) SessionSKey(c *gin.Context) {
	token, err := h.Registry.SKeys.SessionKey(c.Request.Context(), h.session(c))
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"skey": token})
}

// AccessRights 返回启动时生成的权限表.
//
//	@Summary		权限表
//	@Tags			系统
//	@Produce		json
//	@Success		200	{object}	map[string][]string	"modules 与 rights"
//	@Router			/api/v1/access/rights [get]
func (h *Handlers) AccessRights(c *gin.Context) {
	t := h.Registry.Table
	c.JSON(http.StatusOK, gin.H{"modules": t.Modules(), "rights": t.Rights()})
}

// Me 返回当前用户，匿名时 user 为 null.
//
//	@Summary		当前用户
//	@Tags			系统
//	@Produce		json
//	@Success		200	{object}	access.User
//	@Router			/api/v1/user/me [get]
func (h *Handlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}
