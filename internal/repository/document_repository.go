package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
)

// DocumentRepository is the ingestion ledger. A document row only carries
// Status "ingested" after every chunk of that document is confirmed written
// to the vector index; anything else means the next ingestion run re-does
// the whole document.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// BeginIngestion upserts the ledger row as pending before any vectors are
// touched, so a crash mid-ingestion is visible on the next run.
func (r *DocumentRepository) BeginIngestion(doc *model.Document) error {
	doc.Status = model.StatusPending
	doc.LastError = ""
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "title", "category", "content_hash", "status", "last_error", "updated_at",
		}),
	}).Create(doc).Error; err != nil {
		return fmt.Errorf("begin document ingestion failed: %w", err)
	}
	return nil
}

// MarkIngested commits the ledger row after all chunks are written.
func (r *DocumentRepository) MarkIngested(id string, chunkCount int, at time.Time) error {
	updates := map[string]any{
		"status":      model.StatusIngested,
		"chunk_count": chunkCount,
		"ingested_at": at,
		"last_error":  "",
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark document ingested failed: %w", err)
	}
	return nil
}

// MarkFailed records why ingestion did not complete. The row stays
// non-ingested so the document is retried wholesale.
func (r *DocumentRepository) MarkFailed(id string, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	updates := map[string]any{
		"status":     model.StatusFailed,
		"last_error": reason,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) List() ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// ListNotIngested returns documents still pending or failed, the retry set
// for the next ingestion run.
func (r *DocumentRepository) ListNotIngested() ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("status <> ?", model.StatusIngested).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list not-ingested documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
