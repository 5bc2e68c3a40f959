package model

import "time"

// Document ingestion states. A document only reaches StatusIngested after
// every one of its chunks is confirmed written to the vector index.
const (
	StatusPending  = "pending"
	StatusIngested = "ingested"
	StatusFailed   = "failed"
)

// Document is the ingestion ledger row for one source document. The raw text
// is not retained here; it lives on as provenance metadata on the indexed chunks.
type Document struct {
	ID          string     `gorm:"primaryKey;size:191" json:"id"`
	Source      string     `gorm:"size:512;not null" json:"source"`
	Title       string     `gorm:"size:256" json:"title"`
	Category    string     `gorm:"size:128;index" json:"category"`
	ContentHash string     `gorm:"size:64" json:"-"`
	Status      string     `gorm:"size:16;not null;index" json:"status"`
	ChunkCount  int        `json:"chunk_count"`
	LastError   string     `gorm:"size:512" json:"-"`
	IngestedAt  *time.Time `json:"ingested_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SourceDocument is a raw document handed to the ingestion pipeline,
// read from the corpus directory or an upload.
type SourceDocument struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
}
