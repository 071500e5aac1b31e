package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/ledger"
	"github.com/jmerrifield20/recordchain/internal/records/service"
)

// Uploader is the upload workflow consumed by UploadHandler.
type Uploader interface {
	Record(ctx context.Context, filename string, r io.Reader) (*service.UploadResult, error)
}

// UploadHandler serves POST /upload.
type UploadHandler struct {
	svc    Uploader
	logger *zap.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(svc Uploader, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{svc: svc, logger: logger}
}

// Register mounts POST /upload on r behind the given middleware.
func (h *UploadHandler) Register(r gin.IRoutes, mw ...gin.HandlerFunc) {
	r.POST("/upload", append(mw, h.Upload)...)
}

// Upload handles POST /upload hashes the multipart "file" field and records
// the digest in a new block.
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("open uploaded file", zap.String("filename", fh.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer f.Close()

	res, err := h.svc.Record(c.Request.Context(), fh.Filename, f)
	if err != nil {
		h.writeError(c, err)
		return
	}

	RecordLedgerAppend(true)
	RecordUploadSize(res.Size)
	SetLedgerBlocks(res.Block.Index + 1)
	if uploader, ok := c.Get(ctxUploaderKey); ok {
		h.logger.Info("upload authorised",
			zap.Any("uploader", uploader),
			zap.Int("index", res.Block.Index),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File uploaded and hash stored in blockchain",
		"block":   res.Block,
	})
}

func (h *UploadHandler) writeError(c *gin.Context, err error) {
	var hashErr *service.HashError
	var persistErr *ledger.PersistenceError

	switch {
	case errors.Is(err, service.ErrNoFilename):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
	case errors.Is(err, service.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is empty"})
	case errors.As(err, &hashErr):
		h.logger.Error("hash upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
	case errors.As(err, &persistErr):
		RecordLedgerAppend(false)
		h.logger.Error("persist ledger", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to persist ledger"})
	case errors.Is(err, ledger.ErrNotInitialized):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger not ready"})
	default:
		RecordLedgerAppend(false)
		h.logger.Error("record upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record upload"})
	}
}
