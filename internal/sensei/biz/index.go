package biz

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/utils/id"
	"github.com/kart-io/sensei/pkg/utils/textutil"
)

// DocumentRepo persists documents and chunks.
type DocumentRepo interface {
	Create(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Document, error)
	MaxSeq(ctx context.Context) (int64, error)
}

// IndexOptions configures chunking.
type IndexOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultIndexOptions returns the defaults.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{ChunkSize: 512, ChunkOverlap: 50}
}

// IngestResult describes an ingested document.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	// Persisted is false when the document only lives in memory.
	Persisted bool `json:"persisted"`
}

// Index is the document index. Ingest and Remove are serialized; Retrieve
// reads an immutable snapshot and never blocks on writers.
type Index struct {
	repo DocumentRepo
	opts IndexOptions
	now  func() time.Time

	mu   sync.Mutex
	seq  int64
	snap atomic.Pointer[snapshot]
}

// NewIndex creates an empty index. repo may be nil for a memory-only index.
func NewIndex(repo DocumentRepo, opts IndexOptions) *Index {
	def := DefaultIndexOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = def.ChunkOverlap
		if opts.ChunkOverlap >= opts.ChunkSize {
			opts.ChunkOverlap = 0
		}
	}
	ix := &Index{repo: repo, opts: opts, now: time.Now}
	ix.snap.Store(emptySnapshot)
	return ix
}

// Load rebuilds the index from the repository.
func (ix *Index) Load(ctx context.Context) error {
	if ix.repo == nil {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	docs, err := ix.repo.List(ctx)
	if err != nil {
		return err
	}
	snap := emptySnapshot
	for i := range docs {
		snap = snap.withDocument(&docs[i])
		if docs[i].IngestedSeq > ix.seq {
			ix.seq = docs[i].IngestedSeq
		}
	}
	ix.snap.Store(snap)

	logger.Infow("document index loaded", "documents", len(docs), "chunks", len(snap.chunks))
	return nil
}

// Ingest chunks content and adds it to the index. When the repository write
// fails the document is still searchable until restart: the result reports
// Persisted=false together with a storage error.
func (ix *Index) Ingest(ctx context.Context, source, content string) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "Index.Ingest")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, errors.ErrValidation.WithMessage("content is required")
	}
	pieces := textutil.SplitIntoChunks(content, ix.opts.ChunkSize, ix.opts.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, errors.ErrValidation.WithMessage("content is required")
	}
	if source = strings.TrimSpace(source); source == "" {
		source = "inline"
	}

	doc := &model.Document{
		ID:         id.NewULID(),
		Source:     textutil.TruncateString(source, 512),
		ChunkNum:   len(pieces),
		IngestedAt: ix.now().UTC(),
		Chunks:     make([]model.Chunk, len(pieces)),
	}
	for i, p := range pieces {
		doc.Chunks[i] = model.Chunk{
			DocumentID: doc.ID,
			Ordinal:    i,
			Content:    p,
			Terms:      strings.Join(textutil.Tokenize(p), " "),
		}
	}

	// 快照与存储必须一致，调用方断开后仍完成写入
	persistCtx := context.WithoutCancel(ctx)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.initSeq(persistCtx); err != nil {
		logger.Warnw("failed to read ingestion sequence", "error", err.Error())
	}
	ix.seq++
	doc.IngestedSeq = ix.seq

	res := &IngestResult{DocumentID: doc.ID, Chunks: len(doc.Chunks), Persisted: ix.repo != nil}
	var persistErr error
	if ix.repo != nil {
		if err := ix.repo.Create(persistCtx, doc); err != nil {
			res.Persisted = false
			persistErr = err
			logger.Errorw("document not persisted, serving from memory",
				"document_id", doc.ID,
				"error", err.Error(),
			)
		}
	}

	ix.snap.Store(ix.snap.Load().withDocument(doc))
	span.SetAttributes(
		attribute.String("sensei.document_id", doc.ID),
		attribute.Int("sensei.chunks", len(doc.Chunks)),
	)

	logger.Infow("document ingested",
		"document_id", doc.ID,
		"source", doc.Source,
		"chunks", len(doc.Chunks),
		"persisted", res.Persisted,
	)
	return res, persistErr
}

// initSeq reads the stored high-water mark once. Callers hold ix.mu.
func (ix *Index) initSeq(ctx context.Context) error {
	if ix.seq > 0 || ix.repo == nil {
		return nil
	}
	seq, err := ix.repo.MaxSeq(ctx)
	if err != nil {
		return err
	}
	if seq > ix.seq {
		ix.seq = seq
	}
	return nil
}

// Retrieve returns up to k chunks relevant to question, best first.
// An empty index yields an empty result.
func (ix *Index) Retrieve(ctx context.Context, question string, k int) ([]model.ScoredChunk, error) {
	_, span := tracer.Start(ctx, "Index.Retrieve")
	defer span.End()

	hits := ix.snap.Load().search(textutil.Tokenize(question), k)
	span.SetAttributes(attribute.Int("sensei.hits", len(hits)))
	return hits, nil
}

// Remove deletes a document from the repository and the index.
func (ix *Index) Remove(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Index.Remove")
	defer span.End()

	if strings.TrimSpace(documentID) == "" {
		return errors.ErrValidation.WithMessage("document id is required")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap := ix.snap.Load()
	_, inMemory := snap.docs[documentID]

	if ix.repo != nil {
		err := ix.repo.Delete(ctx, documentID)
		switch {
		case err == nil:
		case errors.IsCode(err, errors.ErrDocumentNotFound.Code) && inMemory:
			// 仅存在于内存中的文档
		default:
			return err
		}
	} else if !inMemory {
		return errors.ErrDocumentNotFound.WithMessagef("document %s not found", documentID)
	}

	ix.snap.Store(snap.without(documentID))
	logger.Infow("document removed", "document_id", documentID)
	return nil
}

// Stats returns the number of documents and chunks currently searchable.
func (ix *Index) Stats() (documents, chunks int) {
	s := ix.snap.Load()
	return len(s.docs), len(s.chunks)
}
