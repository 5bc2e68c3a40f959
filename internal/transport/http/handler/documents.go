package handler

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JanhviHarwani/access-ed-backend/internal/app"
	"github.com/JanhviHarwani/access-ed-backend/internal/corpus"
	"github.com/JanhviHarwani/access-ed-backend/internal/model"
	"github.com/JanhviHarwani/access-ed-backend/internal/pkg/pdfextract"
	"github.com/JanhviHarwani/access-ed-backend/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

// IngestJobPublisher enqueues documents for background ingestion.
type IngestJobPublisher interface {
	Publish(ctx context.Context, doc model.SourceDocument) error
}

type DocumentHandler struct {
	ingest    *app.IngestService
	publisher IngestJobPublisher
	corpusDir string
}

type CreateDocumentRequest struct {
	ID       string `json:"id" binding:"max=128"`
	Source   string `json:"source" binding:"max=512"`
	Title    string `json:"title" binding:"max=256"`
	Category string `json:"category" binding:"max=128"`
	Content  string `json:"content" binding:"required"`
}

func NewDocumentHandler(ingest *app.IngestService, publisher IngestJobPublisher, corpusDir string) *DocumentHandler {
	return &DocumentHandler{
		ingest:    ingest,
		publisher: publisher,
		corpusDir: corpusDir,
	}
}

// Create ingests a document synchronously and reports the chunk count.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc := model.SourceDocument{
		ID:       strings.TrimSpace(req.ID),
		Source:   req.Source,
		Title:    req.Title,
		Category: req.Category,
		Content:  req.Content,
	}
	if doc.ID == "" {
		doc.ID = corpus.Slug(doc.Title)
	}

	n, err := h.ingest.IngestDocument(c.Request.Context(), doc)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrIngestionIncomplete):
			response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, gin.H{
		"document_id": doc.ID,
		"chunk_count": n,
	})
}

// UploadPDF accepts a multipart form with "file" (PDF) and optional "title",
// "category" and "source", extracts text and ingests.
func (h *DocumentHandler) UploadPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	text, err := pdfextract.ExtractText(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text from PDF: "+err.Error())
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "PDF contains no extractable text")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
		if title == "" {
			title = "Untitled"
		}
	}

	doc := model.SourceDocument{
		ID:       corpus.Slug(title),
		Source:   strings.TrimSpace(c.PostForm("source")),
		Title:    title,
		Category: strings.TrimSpace(c.PostForm("category")),
		Content:  text,
	}

	n, err := h.ingest.IngestDocument(c.Request.Context(), doc)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrIngestionIncomplete):
			response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, gin.H{
		"document_id": doc.ID,
		"chunk_count": n,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingest.ListDocuments()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := strings.TrimSpace(c.Param("id"))
	if docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}
	if err := h.ingest.DeleteDocument(c.Request.Context(), docID); err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": docID})
}

// Reload re-reads the on-disk corpus and enqueues every document for
// background re-ingestion.
func (h *DocumentHandler) Reload(c *gin.Context) {
	docs, err := corpus.Load(h.corpusDir)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load corpus failed: "+err.Error())
		return
	}

	enqueued := 0
	for _, doc := range docs {
		if err := h.publisher.Publish(c.Request.Context(), doc); err != nil {
			response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, "enqueue ingest job failed")
			return
		}
		enqueued++
	}
	response.OK(c, gin.H{"enqueued_documents": enqueued})
}
