package domain

// Chunk metadata keys attached to every indexed vector.
const (
	MetadataKeyDocID       = "doc_id"
	MetadataKeyChunkIndex  = "chunk_index"
	MetadataKeyTotalChunks = "total_chunks"
)

// DocumentInput is one document submitted for ingestion.
type DocumentInput struct {
	Text     string            `json:"text" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestRequest is the request to add documents to the vector store.
type IngestRequest struct {
	Documents []DocumentInput `json:"documents" binding:"required,min=1"`
}

// IngestResult reports the outcome of an ingestion. Failures are soft:
// Success is false and Error carries the cause.
type IngestResult struct {
	Success        bool     `json:"success"`
	DocumentsAdded int      `json:"documents_added"`
	ChunksCreated  int      `json:"chunks_created"`
	VectorIDs      []string `json:"vector_ids,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Source is one retrieved chunk with its relevance score.
type Source struct {
	DocID      string  `json:"doc_id"`
	Content    string  `json:"content"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// CollectionStats describes the state of the vector store collection.
type CollectionStats struct {
	Available      bool   `json:"available"`
	CollectionName string `json:"collection_name,omitempty"`
	DocumentCount  int    `json:"document_count"`
	PersistPath    string `json:"persist_path,omitempty"`
}
