// Package service holds the upload workflow that turns file bytes into a
// ledger block.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/digest"
)

var (
	// ErrNoFilename is returned when the upload carries no filename.
	ErrNoFilename = errors.New("no selected file")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("uploaded file is empty")
)

// HashError reports that the uploaded content could not be read. Nothing is
// appended to the ledger when it is returned.
type HashError struct {
	Filename string
	Err      error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("compute hash of %q: %v", e.Filename, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// Ledger is the subset of *ledger.Ledger used by the upload workflow.
type Ledger interface {
	Append(ctx context.Context, fileHash string) (chain.Record, error)
	List(ctx context.Context) []chain.Record
}

// UploadResult describes a recorded upload.
type UploadResult struct {
	Filename string
	Size     int64
	Block    chain.Record
}

// UploadService computes file digests and records them on the ledger.
type UploadService struct {
	ledger Ledger
	alg    digest.Algorithm
	logger *zap.Logger
}

// NewUploadService creates an UploadService. alg hashes file content and is
// independent of the algorithm the ledger uses for block hashes.
func NewUploadService(ledger Ledger, alg digest.Algorithm, logger *zap.Logger) *UploadService {
	return &UploadService{ledger: ledger, alg: alg, logger: logger}
}

// Record hashes r and appends the digest to the ledger.
func (s *UploadService) Record(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, ErrNoFilename
	}

	fileHash, size, err := s.alg.SumReader(r)
	if err != nil {
		return nil, &HashError{Filename: filename, Err: err}
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}

	block, err := s.ledger.Append(ctx, fileHash)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", filename, err)
	}

	s.logger.Info("file recorded",
		zap.String("filename", filename),
		zap.Int64("size", size),
		zap.String("file_hash", fileHash),
		zap.Int("index", block.Index),
	)
	return &UploadResult{Filename: filename, Size: size, Block: block}, nil
}

// Chain returns the full ledger.
func (s *UploadService) Chain(ctx context.Context) []chain.Record {
	return s.ledger.List(ctx)
}
