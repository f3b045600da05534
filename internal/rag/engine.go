package rag

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"agentchat/internal/domain"
	"agentchat/internal/llm"
)

// unavailableNotice is returned when the vector store could not be opened.
const unavailableNotice = "RAG system is not available. Please check the vector store configuration."

// noDocumentsNotice is returned when retrieval finds nothing relevant.
const noDocumentsNotice = "I could not find relevant information in the knowledge base to answer your question."

const reformulatePrompt = `Given the conversation history and a follow-up question, rewrite the follow-up as a standalone question that captures all needed context. Return only the rewritten question.`

const synthesizePrompt = `You are a helpful assistant answering questions from retrieved context. Answer only from the provided context. If the context does not contain the answer, say you do not know instead of guessing. Do not refer to "the context" in your answer. Keep answers concise.`

// QueryResult is the outcome of one retrieval-augmented query. Generated
// reports whether a model call produced the answer; canned notices for an
// unavailable store or an empty retrieval leave it false.
type QueryResult struct {
	Answer    string          `json:"answer"`
	Sources   []domain.Source `json:"sources"`
	Usage     *domain.TokenUsage
	Generated bool
}

// Options configures the retrieval engine.
type Options struct {
	PersistPath    string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	ScoreThreshold float64
}

// Engine is the retrieval pipeline over a chromem vector store. When the
// store cannot be opened the engine stays constructed but unavailable, and
// every operation reports that state instead of failing hard.
type Engine struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	provider   llm.Provider
	splitter   *Splitter
	logger     *zap.Logger

	opts      Options
	available bool
}

// NewEngine opens or creates the persistent vector store and its collection.
// Store failures are logged and leave the engine in the unavailable state.
func NewEngine(opts Options, embedder Embedder, provider llm.Provider, logger *zap.Logger) *Engine {
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = 5
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 0.7
	}
	if opts.CollectionName == "" {
		opts.CollectionName = "documents"
	}

	e := &Engine{
		embedder: embedder,
		provider: provider,
		splitter: NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		logger:   logger,
		opts:     opts,
	}

	var db *chromem.DB
	var err error
	if opts.PersistPath != "" {
		db, err = chromem.NewPersistentDB(opts.PersistPath, false)
	} else {
		db = chromem.NewDB()
	}
	if err != nil {
		logger.Warn("vector store unavailable",
			zap.String("persist_path", opts.PersistPath),
			zap.Error(err))
		return e
	}

	// Vectors are produced by the embedder before insertion; the store's
	// embedding func only ever sees pre-embedded content.
	collection, err := db.GetOrCreateCollection(opts.CollectionName, nil, passthroughEmbedding)
	if err != nil {
		logger.Warn("vector collection unavailable",
			zap.String("collection", opts.CollectionName),
			zap.Error(err))
		return e
	}

	e.db = db
	e.collection = collection
	e.available = true
	return e
}

func passthroughEmbedding(_ context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("document %q has no precomputed embedding", truncate(text, 40))
}

// Available reports whether the vector store is usable.
func (e *Engine) Available() bool {
	return e.available
}

// AddDocuments chunks, embeds, and indexes the given documents. Failures
// are reported in the result rather than as an error.
func (e *Engine) AddDocuments(ctx context.Context, docs []domain.DocumentInput) domain.IngestResult {
	if !e.available {
		return domain.IngestResult{Error: unavailableNotice}
	}
	if len(docs) == 0 {
		return domain.IngestResult{Error: "no documents provided"}
	}

	var entries []chromem.Document
	var vectorIDs []string

	for _, doc := range docs {
		chunks := e.splitter.Split(doc.Text)
		if len(chunks) == 0 {
			continue
		}

		vectors, err := e.embedder.Embed(ctx, chunks)
		if err != nil {
			e.logger.Error("embedding failed during ingest", zap.Error(err))
			return domain.IngestResult{Error: fmt.Sprintf("embedding failed: %v", err)}
		}

		docID := uuid.New().String()
		for i, chunk := range chunks {
			metadata := map[string]string{
				domain.MetadataKeyDocID:       docID,
				domain.MetadataKeyChunkIndex:  strconv.Itoa(i),
				domain.MetadataKeyTotalChunks: strconv.Itoa(len(chunks)),
			}
			for k, v := range doc.Metadata {
				if _, reserved := metadata[k]; !reserved {
					metadata[k] = v
				}
			}

			id := fmt.Sprintf("%s-%d", docID, i)
			entries = append(entries, chromem.Document{
				ID:        id,
				Content:   chunk,
				Metadata:  metadata,
				Embedding: vectors[i],
			})
			vectorIDs = append(vectorIDs, id)
		}
	}

	if len(entries) == 0 {
		return domain.IngestResult{Error: "all documents were empty"}
	}

	if err := e.collection.AddDocuments(ctx, entries, runtime.NumCPU()); err != nil {
		e.logger.Error("vector insert failed", zap.Error(err))
		return domain.IngestResult{Error: fmt.Sprintf("vector insert failed: %v", err)}
	}

	e.logger.Info("documents indexed",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(entries)))

	return domain.IngestResult{
		Success:        true,
		DocumentsAdded: len(docs),
		ChunksCreated:  len(entries),
		VectorIDs:      vectorIDs,
	}
}

// Query runs the full pipeline: reformulate the question against history,
// retrieve relevant chunks, and synthesize an answer.
func (e *Engine) Query(ctx context.Context, question string, history []domain.Message) (*QueryResult, error) {
	return e.query(ctx, question, history, nil)
}

// QueryStream runs the pipeline with the synthesis step streamed through fn.
// Reformulation and retrieval produce no fragments; only synthesis does.
func (e *Engine) QueryStream(ctx context.Context, question string, history []domain.Message, fn llm.StreamFunc) (*QueryResult, error) {
	return e.query(ctx, question, history, fn)
}

func (e *Engine) query(ctx context.Context, question string, history []domain.Message, fn llm.StreamFunc) (*QueryResult, error) {
	if !e.available {
		if fn != nil {
			fn(unavailableNotice)
		}
		return &QueryResult{Answer: unavailableNotice}, nil
	}

	search := e.reformulate(ctx, question, history)

	sources, err := e.retrieve(ctx, search)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		if fn != nil {
			fn(noDocumentsNotice)
		}
		return &QueryResult{Answer: noDocumentsNotice, Sources: []domain.Source{}}, nil
	}

	answer, usage, err := e.synthesize(ctx, question, history, sources, fn)
	if err != nil {
		return nil, err
	}

	return &QueryResult{Answer: answer, Sources: sources, Usage: usage, Generated: true}, nil
}

// reformulate rewrites a follow-up question as standalone using the
// conversation history. With no history the question passes through; a
// reformulation failure also falls back to the original question.
func (e *Engine) reformulate(ctx context.Context, question string, history []domain.Message) string {
	if len(history) == 0 {
		return question
	}

	messages := []domain.Message{{Role: domain.RoleSystem, Content: reformulatePrompt}}
	messages = append(messages, history...)
	messages = append(messages, domain.Message{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf("Follow-up question: %s", question),
	})

	resp, err := e.provider.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		e.logger.Warn("query reformulation failed, using original question", zap.Error(err))
		return question
	}
	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// retrieve embeds the search query and returns chunks scoring at or above
// the threshold, best first.
func (e *Engine) retrieve(ctx context.Context, query string) ([]domain.Source, error) {
	count := e.collection.Count()
	if count == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	topK := e.opts.RetrievalK
	if topK > count {
		topK = count
	}

	results, err := e.collection.QueryEmbedding(ctx, vectors[0], topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	var sources []domain.Source
	for _, result := range results {
		score := float64(result.Similarity)
		if score < e.opts.ScoreThreshold {
			continue
		}
		chunkIndex, _ := strconv.Atoi(result.Metadata[domain.MetadataKeyChunkIndex])
		sources = append(sources, domain.Source{
			DocID:      result.Metadata[domain.MetadataKeyDocID],
			Content:    result.Content,
			ChunkIndex: chunkIndex,
			Score:      score,
		})
	}
	return sources, nil
}

// synthesize answers the original question from the retrieved context,
// optionally streaming fragments through fn.
func (e *Engine) synthesize(ctx context.Context, question string, history []domain.Message, sources []domain.Source, fn llm.StreamFunc) (string, *domain.TokenUsage, error) {
	var contextBlock strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&contextBlock, "[%d] %s\n\n", i+1, src.Content)
	}

	messages := []domain.Message{{Role: domain.RoleSystem, Content: synthesizePrompt}}
	messages = append(messages, history...)
	messages = append(messages, domain.Message{
		Role: domain.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\nQuestion: %s",
			contextBlock.String(), question),
	})

	var resp *llm.Response
	var err error
	if fn != nil {
		resp, err = e.provider.GenerateStream(ctx, messages, llm.GenerateOptions{}, fn)
	} else {
		resp, err = e.provider.Generate(ctx, messages, llm.GenerateOptions{})
	}
	if err != nil {
		return "", nil, fmt.Errorf("answer synthesis failed: %w", err)
	}
	return resp.Content, resp.Usage, nil
}

// Stats reports the collection state.
func (e *Engine) Stats() domain.CollectionStats {
	if !e.available {
		return domain.CollectionStats{Available: false}
	}
	return domain.CollectionStats{
		Available:      true,
		CollectionName: e.opts.CollectionName,
		DocumentCount:  e.collection.Count(),
		PersistPath:    e.opts.PersistPath,
	}
}

// Clear drops and recreates the collection. All indexed documents are lost.
func (e *Engine) Clear() error {
	if !e.available {
		return domain.ErrUnavailable
	}

	e.logger.Warn("clearing vector collection", zap.String("collection", e.opts.CollectionName))

	if err := e.db.DeleteCollection(e.opts.CollectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	collection, err := e.db.GetOrCreateCollection(e.opts.CollectionName, nil, passthroughEmbedding)
	if err != nil {
		e.available = false
		return fmt.Errorf("recreate collection: %w", err)
	}
	e.collection = collection
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
