package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/locu5t/civicomfy-go/internal/app"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	queueMgr           *app.QueueManager
	baseDir            string
	defaultConnections int
	logger             *zap.Logger
}

// NewDownloadHandler creates a new download handler. Relative output paths
// are resolved against baseDir; a zero connection count uses defaultConnections.
func NewDownloadHandler(queueMgr *app.QueueManager, baseDir string, defaultConnections int, logger *zap.Logger) *DownloadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultConnections < 1 {
		defaultConnections = 1
	}
	return &DownloadHandler{
		queueMgr:           queueMgr,
		baseDir:            baseDir,
		defaultConnections: defaultConnections,
		logger:             logger,
	}
}

// AddDownloadRequest represents a request to add a download
type AddDownloadRequest struct {
	URL         string `json:"url" binding:"required"`
	OutputPath  string `json:"output_path" binding:"required"`
	Connections int    `json:"connections" binding:"min=0,max=64"`
	Name        string `json:"name,omitempty"`
	VersionName string `json:"version_name,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

func (h *DownloadHandler) toDomain(req AddDownloadRequest) domain.DownloadRequest {
	output := req.OutputPath
	if !filepath.IsAbs(output) && h.baseDir != "" {
		output = filepath.Join(h.baseDir, output)
	}
	connections := req.Connections
	if connections == 0 {
		connections = h.defaultConnections
	}
	return domain.DownloadRequest{
		URL:         req.URL,
		OutputPath:  output,
		Connections: connections,
		Metadata: domain.DownloadMetadata{
			Name:        req.Name,
			VersionName: req.VersionName,
			SizeBytes:   req.SizeBytes,
			Thumbnail:   req.Thumbnail,
		},
	}
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.queueMgr.Enqueue(h.toDomain(req))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to enqueue download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	download, ok := h.queueMgr.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrDownloadNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, download)
}

// GetStatus handles GET /api/v1/downloads/status
func (h *DownloadHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.queueMgr.GetStatus())
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if !h.queueMgr.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"cancelled": false,
			"error":     "nothing to cancel",
		})
		return
	}

	h.logger.Info("Download cancel requested", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
