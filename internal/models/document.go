package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a piece of teaching material or an AI-generated artifact that
// gets indexed into searchable chunks.
type Document struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OwnerID        uuid.UUID `json:"owner_id" db:"owner_id"`
	Title          string    `json:"title" db:"title"`
	Content        string    `json:"content,omitempty" db:"content"`
	FilePath       string    `json:"file_path,omitempty" db:"file_path"`
	MimeType       string    `json:"mime_type,omitempty" db:"mime_type"`
	IndexingStatus string    `json:"indexing_status" db:"indexing_status"`
	IndexingError  string    `json:"indexing_error,omitempty" db:"indexing_error"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type DocumentChunk struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	OwnerID    uuid.UUID `json:"owner_id" db:"owner_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Content    string    `json:"content" db:"content"`
	Embedding  []float32 `json:"-" db:"embedding"`
	TokenCount int       `json:"token_count" db:"token_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

const (
	// IndexStatusAwaitingContent marks a document whose content is still
	// being produced upstream. Indexing defers until it moves to pending.
	IndexStatusAwaitingContent = "awaiting_content"
	IndexStatusPending         = "pending"
	IndexStatusInProgress      = "in_progress"
	IndexStatusCompleted       = "completed"
	IndexStatusFailed          = "failed"
)
