package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/ledger"
)

// LedgerReader is the read side of *ledger.Ledger.
type LedgerReader interface {
	List(ctx context.Context) []chain.Record
	Get(ctx context.Context, index int) (chain.Record, error)
	Len(ctx context.Context) int
	Root(ctx context.Context) string
	Verify(ctx context.Context) error
}

// LedgerHandler exposes read-only HTTP endpoints for the ledger.
type LedgerHandler struct {
	ledger LedgerReader
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerReader, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/entries/:idx", h.GetEntry)
	}
}

// RegisterChain mounts GET /blockchain on r.
func (h *LedgerHandler) RegisterChain(r gin.IRoutes) {
	r.GET("/blockchain", h.Chain)
}

// Chain handles GET /blockchain returns the full chain as a JSON array.
func (h *LedgerHandler) Chain(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.List(c.Request.Context()))
}

// Overview handles GET /ledger returns the chain length and current root hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"entries": h.ledger.Len(ctx),
		"root":    h.ledger.Root(ctx),
	})
}

// Verify handles GET /ledger/verify walks the full chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.ledger.Verify(c.Request.Context())
	RecordIntegrityCheck(err == nil)
	if err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		resp := gin.H{"valid": false, "error": err.Error()}
		var ie *chain.IntegrityError
		if errors.As(err, &ie) && ie.Index >= 0 {
			resp["index"] = ie.Index
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// GetEntry handles GET /ledger/entries/:idx returns a single block.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := h.ledger.Get(c.Request.Context(), idx)
	if errors.Is(err, ledger.ErrOutOfRange) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	if err != nil {
		h.logger.Error("ledger Get", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
