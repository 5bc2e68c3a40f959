package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrDocumentNotFound  = errors.New("document not found")

	// ErrIngestionIncomplete means a document's chunk batch was not fully
	// written. The ledger row stays non-ingested and the whole document is
	// retried on the next run; no half-indexed state is ever committed.
	ErrIngestionIncomplete = errors.New("document ingestion incomplete")
)
