package record

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"receipttracker/internal/parse"
	"receipttracker/internal/pipeline"
)

// Processor runs the OCR pipeline; satisfied by *pipeline.Orchestrator.
type Processor interface {
	Process(ctx context.Context, data []byte, contentType string, opts pipeline.Options) (*parse.ParsedReceipt, error)
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations: it stores the uploaded original,
// runs the pipeline, and persists the resulting record.
type Service struct {
	db          DB
	processor   Processor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, processor Processor, storage Storage) *Service {
	return &Service{
		db:          db,
		processor:   processor,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, processor Processor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		processor:   processor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameSpecials = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames: special characters
// removed, whitespace collapsed, base truncated to a sane length.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	base = filenameSpecials.ReplaceAllString(base, "")
	base = strings.TrimSpace(filenameSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

func cents(v float64) int {
	if v < 0 {
		return int(v*100 - 0.5)
	}
	return int(v*100 + 0.5)
}

// ProcessReceipt stores the uploaded document, runs the OCR pipeline and
// saves the resulting record. The stored file is cleaned up when the
// pipeline or the database rejects the document.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string, opts pipeline.Options) (*Receipt, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	parsed, err := s.processor.Process(ctx, data, contentType, opts)
	if err != nil {
		slog.Error("Failed to process receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("processing receipt: %w", err)
	}

	receipt := &Receipt{
		ID:          id,
		Merchant:    parsed.Merchant,
		RawText:     parsed.RawText,
		Engine:      parsed.Engine,
		Confidence:  parsed.Confidence,
		Items:       make([]Item, 0, len(parsed.Items)),
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if parsed.Date != nil {
		receipt.Date = *parsed.Date
	}
	if parsed.Total != nil {
		receipt.TotalCents = cents(*parsed.Total)
	}
	for _, item := range parsed.Items {
		receipt.Items = append(receipt.Items, Item{
			Name:           item.Name,
			UnitPriceCents: cents(item.UnitPrice),
			Quantity:       item.Quantity,
		})
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt and its stored file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(receipt.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the original document for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}
