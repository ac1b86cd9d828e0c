package document

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragent-io/ragent/chunking"
	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/store"
	"github.com/ragent-io/ragent/types"
)

// pdfFixture is a minimal upload body that sniffs as application/pdf
var pdfFixture = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

// testStorage connects to the database named by POSTGRES_TEST_URL and
// starts from empty tables. Tests skip when the variable is unset.
func testStorage(t *testing.T) *storage.Storage {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	s, err := storage.New(context.Background(), storage.Options{DatabaseURL: url, Dimension: 2})
	require.Nil(t, err)
	t.Cleanup(s.Close)

	_, err = s.Pool().Exec(context.Background(), "TRUNCATE documents CASCADE")
	require.Nil(t, err)
	return s
}

func testDocumentService(t *testing.T, s *storage.Storage) *Service {
	t.Helper()
	kv, err := store.New(store.Options{Backend: store.BackendLRU, Size: 256})
	require.Nil(t, err)
	cache := store.NewCache(kv, store.CacheOptions{})

	extractor := &fakeExtractor{result: pagesResult(
		textPage(1, strings.Repeat("Uploaded fixture sentence. ", 20)),
	)}
	processor, err := NewProcessor(ProcessorOptions{
		Extractor:  extractor,
		Chunker:    chunking.New(chunking.Options{Size: 200, Overlap: 20}),
		Embedder:   &fakeEmbedder{},
		Summarizer: &fakeSummarizer{summary: "A fixture document."},
	})
	require.Nil(t, err)

	service, err := NewService(ServiceOptions{
		Storage:   s,
		Cache:     cache,
		Processor: processor,
		UploadDir: t.TempDir(),
	})
	require.Nil(t, err)
	t.Cleanup(service.Close)
	return service
}

func upload(t *testing.T, service *Service, filename string, content []byte) *UploadReceipt {
	t.Helper()
	receipt, err := service.Upload(context.Background(), UploadInput{
		Filename: filename,
		Size:     int64(len(content)),
		Reader:   bytes.NewReader(content),
	})
	require.Nil(t, err)
	return receipt
}

// waitCompleted polls until the document leaves pending/processing
func waitCompleted(t *testing.T, service *Service, id string) *types.Document {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := service.Get(context.Background(), id)
		require.Nil(t, err)
		if doc.Status == types.DocumentStatusCompleted || doc.Status == types.DocumentStatusFailed {
			return doc
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("document never finished processing")
	return nil
}

func TestUploadRejectsExtension(t *testing.T) {
	service := testDocumentService(t, testStorage(t))

	_, err := service.Upload(context.Background(), UploadInput{
		Filename: "notes.txt",
		Size:     4,
		Reader:   strings.NewReader("text"),
	})
	require.NotNil(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUnsupportedFileType))
}

func TestUploadRejectsOversize(t *testing.T) {
	service := testDocumentService(t, testStorage(t))

	_, err := service.Upload(context.Background(), UploadInput{
		Filename: "big.pdf",
		Size:     DefaultMaxUploadSize + 1,
		Reader:   bytes.NewReader(pdfFixture),
	})
	require.NotNil(t, err)
	assert.True(t, errs.IsKind(err, errs.KindFileTooLarge))
	assert.Equal(t, 413, errs.StatusOf(err))
}

func TestUploadRejectsMasqueradingContent(t *testing.T) {
	service := testDocumentService(t, testStorage(t))

	_, err := service.Upload(context.Background(), UploadInput{
		Filename: "really-a-png.pdf",
		Size:     8,
		Reader:   bytes.NewReader([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}),
	})
	require.NotNil(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUnsupportedFileType))
}

func TestUploadProcessesDocument(t *testing.T) {
	service := testDocumentService(t, testStorage(t))

	receipt := upload(t, service, "report.pdf", pdfFixture)
	assert.False(t, receipt.Duplicate)
	assert.Equal(t, "report.pdf", receipt.Document.OriginalFilename)
	assert.Equal(t, receipt.Document.ID+".pdf", receipt.Document.Filename)

	doc := waitCompleted(t, service, receipt.Document.ID)
	assert.Equal(t, types.DocumentStatusCompleted, doc.Status)
	assert.Equal(t, 1, doc.PageCount)
	assert.Greater(t, doc.ChunkCount, 0)
	assert.Equal(t, "A fixture document.", doc.Summary)

	chunks, err := service.Chunks(context.Background(), doc.ID, 100, 0)
	require.Nil(t, err)
	assert.Len(t, chunks, doc.ChunkCount)

	status, err := service.Status(context.Background(), doc.ID)
	require.Nil(t, err)
	assert.Equal(t, types.DocumentStatusCompleted, status.Status)
	require.NotNil(t, status.Progress)
	assert.Equal(t, types.StageCompleted, status.Progress.Stage)
	assert.Equal(t, 100, status.Progress.Percent)
}

func TestUploadDeduplicates(t *testing.T) {
	service := testDocumentService(t, testStorage(t))

	first := upload(t, service, "one.pdf", pdfFixture)
	doc := waitCompleted(t, service, first.Document.ID)
	require.Equal(t, types.DocumentStatusCompleted, doc.Status)
	chunkCount := doc.ChunkCount

	// Same bytes under a different name resolve to the same document
	second := upload(t, service, "two.pdf", pdfFixture)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Document.ID, second.Document.ID)

	_, total, err := service.List(context.Background(), "", 1, 10)
	require.Nil(t, err)
	assert.Equal(t, 1, total)

	after, err := service.Get(context.Background(), first.Document.ID)
	require.Nil(t, err)
	assert.Equal(t, chunkCount, after.ChunkCount)
}

func TestDeleteDocument(t *testing.T) {
	service := testDocumentService(t, testStorage(t))

	receipt := upload(t, service, "gone.pdf", pdfFixture)
	waitCompleted(t, service, receipt.Document.ID)

	require.Nil(t, service.Delete(context.Background(), receipt.Document.ID))

	_, err := service.Get(context.Background(), receipt.Document.ID)
	assert.True(t, errs.IsKind(err, errs.KindDocumentNotFound))

	// Deleted hashes no longer dedup, a re-upload creates a fresh document
	again := upload(t, service, "gone.pdf", pdfFixture)
	assert.False(t, again.Duplicate)
	assert.NotEqual(t, receipt.Document.ID, again.Document.ID)
}

type fakeIngestor struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeIngestor) IngestFile(ctx context.Context, path string) (*UploadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return &UploadReceipt{Document: &types.Document{ID: "doc-watch"}}, nil
}

func (f *fakeIngestor) ingested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func TestWatcherIngestsDroppedPDF(t *testing.T) {
	dir := t.TempDir()
	ingestor := &fakeIngestor{}
	watcher, err := NewWatcher(ingestor, WatcherOptions{Dir: dir, Settle: 50 * time.Millisecond})
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Give the watcher a moment to arm before dropping files
	time.Sleep(100 * time.Millisecond)
	require.Nil(t, os.WriteFile(filepath.Join(dir, "drop.pdf"), pdfFixture, 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "ignore.tmp"), []byte("x"), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(ingestor.ingested()) == 0 {
		time.Sleep(20 * time.Millisecond)
	}

	paths := ingestor.ingested()
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "drop.pdf"), paths[0])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewWatcherValidatesOptions(t *testing.T) {
	_, err := NewWatcher(nil, WatcherOptions{Dir: "x"})
	assert.NotNil(t, err)

	_, err = NewWatcher(&fakeIngestor{}, WatcherOptions{})
	assert.NotNil(t, err)
}

func TestMaintenanceSweep(t *testing.T) {
	s := testStorage(t)
	maintenance, err := NewMaintenance(s, MaintenanceOptions{
		StaleAfter:    time.Hour,
		RetainDeleted: 24 * time.Hour,
	})
	require.Nil(t, err)

	ctx := context.Background()

	stale := &types.Document{
		ID: "11111111-1111-1111-1111-111111111111", Filename: "a.pdf",
		OriginalFilename: "a.pdf", ContentType: "application/pdf",
		FileSize: 1, FileHash: "hash-stale",
	}
	require.Nil(t, s.Documents.Create(ctx, stale))
	stale.MarkProcessing()
	require.Nil(t, s.Documents.Update(ctx, stale))
	_, err = s.Pool().Exec(ctx,
		"UPDATE documents SET processing_started_at = NOW() - INTERVAL '3 hours' WHERE id = $1", stale.ID)
	require.Nil(t, err)

	buried := &types.Document{
		ID: "22222222-2222-2222-2222-222222222222", Filename: "b.pdf",
		OriginalFilename: "b.pdf", ContentType: "application/pdf",
		FileSize: 1, FileHash: "hash-buried",
	}
	require.Nil(t, s.Documents.Create(ctx, buried))
	require.Nil(t, s.Documents.SoftDelete(ctx, buried.ID))
	_, err = s.Pool().Exec(ctx,
		"UPDATE documents SET deleted_at = NOW() - INTERVAL '48 hours' WHERE id = $1", buried.ID)
	require.Nil(t, err)

	maintenance.Sweep(ctx)

	failed, err := s.Documents.Get(ctx, stale.ID)
	require.Nil(t, err)
	assert.Equal(t, types.DocumentStatusFailed, failed.Status)
	assert.Equal(t, StaleReason, failed.ProcessingError)

	var remaining int
	require.Nil(t, s.Pool().QueryRow(ctx,
		"SELECT COUNT(*) FROM documents WHERE id = $1", buried.ID).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestNewMaintenanceDefaults(t *testing.T) {
	s := testStorage(t)
	maintenance, err := NewMaintenance(s, MaintenanceOptions{})
	require.Nil(t, err)
	assert.Equal(t, DefaultSweepSchedule, maintenance.schedule)
	assert.Equal(t, DefaultStaleAfter, maintenance.staleAfter)
	assert.Equal(t, DefaultRetainDeleted, maintenance.retainDeleted)
}
