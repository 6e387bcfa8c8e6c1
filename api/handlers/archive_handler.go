package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

const defaultArchiveLimit = 50

// ArchiveHandler serves the record of finished downloads
type ArchiveHandler struct {
	repo   domain.ArchiveRepository
	logger *zap.Logger
}

// NewArchiveHandler creates a new archive handler. repo may be nil when the
// archive is disabled.
func NewArchiveHandler(repo domain.ArchiveRepository, logger *zap.Logger) *ArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveHandler{repo: repo, logger: logger}
}

func (h *ArchiveHandler) available(c *gin.Context) bool {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive is disabled"})
		return false
	}
	return true
}

// ListArchive handles GET /api/v1/archive
func (h *ArchiveHandler) ListArchive(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var (
		records []*domain.ArchiveRecord
		err     error
	)
	if status := c.Query("status"); status != "" {
		s := domain.DownloadStatus(status)
		if !domain.ValidateStatus(s) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		records, err = h.repo.FindByStatus(s)
	} else {
		limit := defaultArchiveLimit
		if raw := c.Query("limit"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}
		records, err = h.repo.FindRecent(limit)
	}
	if err != nil {
		h.logger.Error("Failed to list archive", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*domain.ArchiveRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// GetRecord handles GET /api/v1/archive/:id
func (h *ArchiveHandler) GetRecord(c *gin.Context) {
	if !h.available(c) {
		return
	}

	record, err := h.repo.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrDownloadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to load archive record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetStats handles GET /api/v1/archive/stats
func (h *ArchiveHandler) GetStats(c *gin.Context) {
	if !h.available(c) {
		return
	}

	stats, err := h.repo.GetStats()
	if err != nil {
		h.logger.Error("Failed to get archive stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
