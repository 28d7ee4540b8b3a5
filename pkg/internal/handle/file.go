package handle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	"github.com/yeisme/skelvault/pkg/log"
)

// blobKeyField 直传完成后回调携带的 blob key 字段.
const blobKeyField = "blobkey"

// FileList 列出目录或文件.
//
//	@Summary		列出目录或文件
//	@Tags			文件
//	@Produce		json
//	@Param			skelType	path		string	true	"node 或 leaf"
//	@Param			parentdir	query		string	false	"上级目录 key"
//	@Success		200			{object}	render.ListResponse
//	@Failure		406			{object}	map[string]string	"skelType 无效"
//	@Router			/api/v1/file/list/{skelType} [get]
func (h *Handlers) FileList(c *gin.Context) {
	p, err := params(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Registry.File.List(c.Request.Context(), currentUser(c), c.Param("skelType"), service.FieldsFrom(p))
	h.respond(c, res, err)
}

// FileView 查看目录或文件；对象不存在但参数是 blob key 时跳转到下载.
//
//	@Summary		查看目录或文件
//	@Tags			文件
//	@Produce		json
//	@Param			skelType	path		string	true	"node 或 leaf"
//	@Param			key			path		string	false	"条目 key"
//	@Success		200			{object}	render.Response
//	@Success		302			{string}	string	"跳转到下载地址"
//	@Failure		404			{object}	map[string]string	"条目不存在"
//	@Router			/api/v1/file/view/{skelType}/{key} [get]
func (h *Handlers) FileView(c *gin.Context) {
	res, err := h.Registry.File.View(c.Request.Context(), currentUser(c), c.Param("skelType"), c.Param("key"))
	h.respond(c, res, err)
}

// FileAdd 在目录下新建子目录.
//
//	@Summary		新建目录
//	@Tags			文件
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			skelType	path		string	true	"只接受 node"
//	@Param			node		path		string	true	"上级目录 key"
//	@Param			skey		formData	string	false	"一次性 skey"
//	@Success		200			{object}	render.Response
//	@Failure		406			{object}	map[string]string	"skelType 无效"
//	@Router			/api/v1/file/add/{skelType}/{node} [post]
func (h *Handlers) FileAdd(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Registry.File.Add(c.Request.Context(), c.Param("skelType"), c.Param("node"), req)
	h.respond(c, res, err)
}

// FileEdit 修改目录或文件.
//
//	@Summary		修改目录或文件
//	@Tags			文件
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			skelType	path		string	true	"node 或 leaf"
//	@Param			key			path		string	true	"条目 key"
//	@Success		200			{object}	render.Response
//	@Router			/api/v1/file/edit/{skelType}/{key} [post]
func (h *Handlers) FileEdit(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Registry.File.Edit(c.Request.Context(), c.Param("skelType"), c.Param("key"), req)
	h.respond(c, res, err)
}

// FileDelete 删除文件，或递归删除目录.
//
//	@Summary		删除目录或文件
//	@Tags			文件
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			skelType	path		string	true	"node 或 leaf"
//	@Param			key			path		string	true	"条目 key"
//	@Param			skey		formData	string	true	"一次性 skey"
//	@Success		200			{object}	render.Response
//	@Router			/api/v1/file/delete/{skelType}/{key} [post]
func (h *Handlers) FileDelete(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Registry.File.Delete(c.Request.Context(), c.Param("skelType"), c.Param("key"), req)
	h.respond(c, res, err)
}

// FilePreview 校验目录或文件的输入.
//
//	@Summary		预览目录或文件
//	@Tags			文件
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			skelType	path		string	true	"node 或 leaf"
//	@Param			skey		formData	string	true	"一次性 skey"
//	@Success		200			{object}	render.Response
//	@Router			/api/v1/file/preview/{skelType} [post]
func (h *Handlers) FilePreview(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Registry.File.Preview(c.Request.Context(), c.Param("skelType"), req)
	h.respond(c, res, err)
}

// FileUpload 接收 multipart 文件或直传回调的 blobkey，为每个 blob 创建文件条目.
// 未指定目录时文件为 weak.
//
//	@Summary		上传文件
//	@Tags			文件
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			node	path		string	false	"目标目录 key"
//	@Param			file	formData	file	false	"文件内容，可重复"
//	@Param			blobkey	formData	string	false	"已直传的 blob key，可重复"
//	@Success		200		{object}	render.ListResponse
//	@Failure		403		{object}	map[string]string	"无权上传"
//	@Failure		404		{object}	map[string]string	"目录不存在"
//	@Router			/api/v1/file/upload/{node} [post]
func (h *Handlers) FileUpload(c *gin.Context) {
	if h.MaxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadSize)
	}

	p, err := params(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}

		badRequest(c, err)

		return
	}

	ctx := c.Request.Context()
	store := h.Registry.File.Blobs

	in, err := collectBlobs(ctx, c.Request, store)
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	if len(in.Received)+len(in.Referenced) == 0 {
		h.respond(c, nil, fmt.Errorf("upload: no blobs: %w", service.ErrNotAcceptable))
		return
	}

	node := c.Param("node")
	if node == "" && len(p["node"]) > 0 {
		node = p["node"][0]
	}

	res, err := h.Registry.File.UploadBlobs(ctx, currentUser(c), node, in)
	h.respond(c, res, err)
}

// collectBlobs 写入 multipart 文件并读取 blobkey 字段对应的元数据.
// 只有本次写入的 blob 归入 Received，出错时也只删除这些.
func collectBlobs(ctx context.Context, r *http.Request, store blob.Store) (service.Uploaded, error) {
	var in service.Uploaded

	fail := func(err error) (service.Uploaded, error) {
		for _, info := range in.Received {
			_ = store.Delete(ctx, info.Key)
		}

		return service.Uploaded{}, err
	}

	if r.MultipartForm != nil {
		for _, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					return fail(fmt.Errorf("open part %s: %w", fh.Filename, err))
				}

				info, err := store.Put(ctx, fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
				_ = f.Close()

				if err != nil {
					return fail(fmt.Errorf("%w: store %s: %w", service.ErrInternal, fh.Filename, err))
				}

				in.Received = append(in.Received, info)
			}
		}
	}

	for _, key := range r.Form[blobKeyField] {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		info, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return fail(fmt.Errorf("blob %s: %w", key, service.ErrNotFound))
			}

			return fail(fmt.Errorf("%w: blob %s: %w", service.ErrInternal, key, err))
		}

		in.Referenced = append(in.Referenced, info)
	}

	return in, nil
}

// FileDownload 输出 blob 内容，download=1 时以附件形式返回.
//
//	@Summary		下载文件
//	@Tags			文件
//	@Produce		octet-stream
//	@Param			blobKey		path	string	true	"blob key"
//	@Param			fileName	query	string	false	"附件文件名"
//	@Param			download	query	string	false	"为 1 时作为附件下载"
//	@Success		200			{file}	file
//	@Failure		404			{object}	map[string]string	"blob 不存在"
//	@Router			/api/v1/file/download/{blobKey} [get]
func (h *Handlers) FileDownload(c *gin.Context) {
	d, err := h.Registry.File.Download(c.Request.Context(), c.Param("blobKey"), c.Query("fileName"), parseBool(c.Query("download")))
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	defer func() {
		if cerr := d.Body.Close(); cerr != nil {
			log.Ctx(c.Request.Context()).Warn().Err(cerr).Str("blob", d.Info.Key).Msg("close blob failed")
		}
	}()

	headers := map[string]string{}
	if d.Disposition != "" {
		headers["Content-Disposition"] = d.Disposition
	}

	c.DataFromReader(http.StatusOK, d.Info.Size, d.ContentType, d.Body, headers)
}

// FileUploadURL 返回直传目标，完成后客户端携带 blobkey 调用 upload.
//
//	@Summary		获取直传地址
//	@Tags			文件
//	@Produce		json
//	@Param			skey	query		string	true	"会话 skey"
//	@Success		200		{object}	blob.UploadTarget
//	@Failure		403		{object}	map[string]string	"无权上传"
//	@Failure		412		{object}	map[string]string	"skey 无效"
//	@Router			/api/v1/file/getUploadURL [get]
func (h *Handlers) FileUploadURL(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	target, err := h.Registry.File.UploadURL(c.Request.Context(), req)
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, target)
}

// FileRootNodes 返回当前用户可用的根目录.
//
//	@Summary		可用根目录
//	@Tags			文件
//	@Produce		json
//	@Success		200	{array}	service.RootNodeRef
//	@Router			/api/v1/file/getAvailableRootNodes [get]
func (h *Handlers) FileRootNodes(c *gin.Context) {
	refs, err := h.Registry.File.AvailableRootNodes(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, refs)
}
