package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"sales-voice-go/internal/service"
	"sales-voice-go/pkg/log"
	"strings"

	"github.com/gin-gonic/gin"
)

// DatasetHandler 处理数据集的上传、查询与重置。
type DatasetHandler struct {
	datasetService service.DatasetService
	maxBytes       int64
}

// NewDatasetHandler 创建一个新的 DatasetHandler。maxUploadMB<=0 表示不限制。
func NewDatasetHandler(datasetService service.DatasetService, maxUploadMB int) *DatasetHandler {
	return &DatasetHandler{datasetService: datasetService, maxBytes: int64(maxUploadMB) << 20}
}

// Upload 接收 multipart 表单中的 file 字段。
func (h *DatasetHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respond(c, http.StatusBadRequest, "missing file field", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respond(c, http.StatusBadRequest, "only .csv files are supported", nil)
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		respondError(c, service.ErrDatasetTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Errorf("打开上传文件失败: %v", err)
		respond(c, http.StatusBadRequest, "failed to read uploaded file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond(c, http.StatusBadRequest, "failed to read uploaded file", nil)
		return
	}

	info, err := h.datasetService.Upload(c.Request.Context(), c.Param("id"), filepath.Base(header.Filename), data)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, info.Notice, info)
}

// Info 返回当前数据集的列、行数与来源。
func (h *DatasetHandler) Info(c *gin.Context) {
	info, err := h.datasetService.Info(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, info.Notice, info)
}

// Clear 让会话回退到默认数据集。
func (h *DatasetHandler) Clear(c *gin.Context) {
	if err := h.datasetService.Clear(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, service.NoticeDefault, nil)
}
