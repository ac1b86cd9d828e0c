package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/store"
	"github.com/ragent-io/ragent/types"
)

// DefaultMaxUploadSize caps uploads when no limit is configured
const DefaultMaxUploadSize = 50 << 20

// ServiceOptions wire the ingestion service together
type ServiceOptions struct {
	Storage           *storage.Storage
	Cache             *store.Cache // optional processing-status tracker
	Processor         *Processor
	UploadDir         string
	MaxUploadSize     int64    // bytes, default 50 MB
	AllowedExtensions []string // default [".pdf"]
}

// UploadInput carries one incoming file
type UploadInput struct {
	Filename    string
	ContentType string // optional, sniffed from content when empty
	Size        int64
	Reader      io.Reader
}

// UploadReceipt reports the created document, or the existing one when
// the content hash was already ingested.
type UploadReceipt struct {
	Document  *types.Document
	Duplicate bool
}

// Status is the processing view of one document: the persisted row
// fields plus the live pipeline snapshot while a run is in flight.
type Status struct {
	DocumentID            string                    `json:"document_id"`
	Status                types.DocumentStatus      `json:"status"`
	ErrorMessage          string                    `json:"error_message,omitempty"`
	PageCount             int                       `json:"page_count"`
	ChunkCount            int                       `json:"total_chunks"`
	ProcessingStartedAt   *time.Time                `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time                `json:"processing_completed_at,omitempty"`
	Progress              *types.ProcessingProgress `json:"progress,omitempty"`
}

// Service owns document ingestion: upload validation, hash dedup, the
// stored-file layout, asynchronous processing runs and the queries the
// API surface needs.
type Service struct {
	storage   *storage.Storage
	cache     *store.Cache
	processor *Processor
	uploadDir string
	maxUpload int64
	allowed   map[string]bool
	allowList []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the ingestion service and its upload directory
func NewService(options ServiceOptions) (*Service, error) {
	if options.Storage == nil {
		return nil, fmt.Errorf("document service requires a storage backend")
	}
	if options.Processor == nil {
		return nil, fmt.Errorf("document service requires a processor")
	}
	if options.UploadDir == "" {
		options.UploadDir = "data/uploads"
	}
	if options.MaxUploadSize <= 0 {
		options.MaxUploadSize = DefaultMaxUploadSize
	}
	if len(options.AllowedExtensions) == 0 {
		options.AllowedExtensions = []string{".pdf"}
	}

	if err := os.MkdirAll(options.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", options.UploadDir, err)
	}

	allowed := make(map[string]bool, len(options.AllowedExtensions))
	allowList := make([]string, 0, len(options.AllowedExtensions))
	for _, ext := range options.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
		allowList = append(allowList, ext)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		storage:   options.Storage,
		cache:     options.Cache,
		processor: options.Processor,
		uploadDir: options.UploadDir,
		maxUpload: options.MaxUploadSize,
		allowed:   allowed,
		allowList: allowList,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Upload validates and stores an incoming file, deduplicates it by
// content hash and starts the processing run. On a hash match the
// existing document is returned and nothing is written.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadReceipt, error) {
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if !s.allowed[ext] {
		return nil, errs.UnsupportedFileType(in.Filename, s.allowList)
	}
	if in.Size > s.maxUpload {
		return nil, errs.FileTooLarge(in.Size, s.maxUpload)
	}

	content, err := io.ReadAll(io.LimitReader(in.Reader, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > s.maxUpload {
		return nil, errs.FileTooLarge(int64(len(content)), s.maxUpload)
	}
	if len(content) == 0 {
		return nil, errs.Validation("uploaded file is empty")
	}

	// The extension gate is advisory; the content decides
	detected := mimetype.Detect(content)
	if !detected.Is("application/pdf") {
		return nil, errs.UnsupportedFileType(in.Filename, s.allowList).
			With("detected_type", detected.String())
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = detected.String()
	}

	sum := sha256.Sum256(content)
	fileHash := hex.EncodeToString(sum[:])

	existing, err := s.storage.Documents.GetByHash(ctx, fileHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("[Document] duplicate upload %s matches %s", in.Filename, existing.ID)
		return &UploadReceipt{Document: existing, Duplicate: true}, nil
	}

	doc := &types.Document{
		ID:               uuid.NewString(),
		OriginalFilename: in.Filename,
		ContentType:      contentType,
		FileSize:         int64(len(content)),
		FileHash:         fileHash,
		Status:           types.DocumentStatusPending,
	}
	doc.Filename = doc.ID + ext

	path := filepath.Join(s.uploadDir, doc.Filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", doc.Filename, err)
	}

	if err := s.storage.Documents.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	log.Info("[Document] uploaded %s as %s (%d bytes)", in.Filename, doc.ID, len(content))

	s.wg.Add(1)
	go s.process(doc, path)

	return &UploadReceipt{Document: doc}, nil
}

// IngestFile uploads a file already on disk, used by the drop-directory
// watcher
func (s *Service) IngestFile(ctx context.Context, path string) (*UploadReceipt, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return s.Upload(ctx, UploadInput{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Reader:   file,
	})
}

// process runs the pipeline for one stored file and persists the
// outcome. Runs on its own goroutine per document; the service context
// aborts in-flight runs on Close.
func (s *Service) process(doc *types.Document, path string) {
	defer s.wg.Done()

	doc.MarkProcessing()
	if err := s.storage.Documents.Update(s.ctx, doc); err != nil {
		log.Error("[Document] %s mark processing: %s", doc.ID, err.Error())
		return
	}
	s.track(types.ProcessingProgress{
		DocumentID: doc.ID,
		Stage:      types.StageHashing,
		Message:    "Processing started",
	})

	processed, err := s.processor.Process(s.ctx, doc.ID, path, doc.OriginalFilename, s.track)
	if err != nil {
		reason := err.Error()
		if s.ctx.Err() != nil {
			reason = "cancelled"
		}
		s.fail(doc, reason)
		return
	}

	if err := s.storage.SaveProcessed(s.ctx, doc, processed); err != nil {
		s.fail(doc, fmt.Sprintf("failed to persist results: %s", err.Error()))
		return
	}

	log.Info("[Document] %s completed, %d pages %d chunks",
		doc.ID, processed.PageCount, len(processed.Chunks))
}

// fail marks the document failed. The write uses a fresh context so the
// terminal state lands even when the run was cancelled.
func (s *Service) fail(doc *types.Document, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc.MarkFailed(reason)
	if err := s.storage.Documents.Update(ctx, doc); err != nil {
		log.Error("[Document] %s mark failed: %s", doc.ID, err.Error())
	}
	s.track(types.ProcessingProgress{
		DocumentID: doc.ID,
		Stage:      types.StageFailed,
		Percent:    100,
		Message:    "Processing failed",
		Error:      reason,
	})
	log.Error("[Document] %s failed: %s", doc.ID, reason)
}

// track mirrors a pipeline snapshot into the status tracker
func (s *Service) track(progress types.ProcessingProgress) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetProcessingStatus(progress.DocumentID, progress); err != nil {
		log.Warn("[Document] track %s: %s", progress.DocumentID, err.Error())
	}
}

// Get returns a live document by id
func (s *Service) Get(ctx context.Context, id string) (*types.Document, error) {
	return s.storage.Documents.Get(ctx, id)
}

// List returns one page of live documents, newest first, with the
// total count. An empty status matches every status.
func (s *Service) List(ctx context.Context, status types.DocumentStatus, page, pageSize int) ([]*types.Document, int, error) {
	return s.storage.Documents.List(ctx, status, page, pageSize)
}

// Chunks returns one page of a document's chunks in index order
func (s *Service) Chunks(ctx context.Context, documentID string, limit, offset int) ([]*types.Chunk, error) {
	if _, err := s.storage.Documents.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.storage.Chunks.ListByDocument(ctx, documentID, limit, offset)
}

// Status reports the processing state of a document: the live pipeline
// snapshot while one is tracked, over the persisted row fields.
func (s *Service) Status(ctx context.Context, id string) (*Status, error) {
	doc, err := s.storage.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &Status{
		DocumentID:            doc.ID,
		Status:                doc.Status,
		ErrorMessage:          doc.ProcessingError,
		PageCount:             doc.PageCount,
		ChunkCount:            doc.ChunkCount,
		ProcessingStartedAt:   doc.ProcessingStartedAt,
		ProcessingCompletedAt: doc.ProcessingCompletedAt,
	}
	if s.cache != nil {
		if progress, ok := s.cache.GetProcessingStatus(id); ok {
			status.Progress = progress
		}
	}
	return status, nil
}

// Delete soft-deletes a document and drops its status snapshot. Chunks
// leave search through the deletion predicate.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.storage.Documents.SoftDelete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteProcessingStatus(id); err != nil {
			log.Warn("[Document] drop status %s: %s", id, err.Error())
		}
	}
	log.Info("[Document] deleted %s", id)
	return nil
}

// Close aborts in-flight processing runs and waits for them to settle
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
