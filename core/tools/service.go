package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/docserve/docserve/core/document"
	"github.com/docserve/docserve/core/infra/config"
	"github.com/docserve/docserve/core/tempstore"
)

// Service binds the tool-level contract to the temp store and the editing
// engine. All operations accept logical names; physical paths never appear
// in results.
type Service struct {
	store  *tempstore.Store
	engine document.Engine
	cfg    *config.Config
	limits config.Limits
}

// New constructs the tool service.
func New(store *tempstore.Store, engine document.Engine, cfg *config.Config, limits config.Limits) *Service {
	return &Service{store: store, engine: engine, cfg: cfg, limits: limits}
}

func (s *Service) downloadURL(fileID string) string {
	return s.cfg.PublicBaseURL() + "/files/" + fileID
}

func (s *Service) ttlHours(requested int) int {
	hours := requested
	if hours <= 0 {
		hours = s.cfg.DefaultTTLHours
	}
	if hours > s.limits.MaxTTLHours {
		hours = s.limits.MaxTTLHours
	}
	return hours
}

// publicError re-expresses internal failures for the tool surface without
// leaking store paths or driver detail.
func publicError(err error) string {
	switch {
	case errors.Is(err, tempstore.ErrStorageUnavailable):
		return "file index unavailable"
	case errors.Is(err, tempstore.ErrExpired):
		return "File has expired"
	case errors.Is(err, tempstore.ErrNotFound):
		return err.Error()
	default:
		return err.Error()
	}
}

// CreateRequest describes CreateDocumentWithDownloadLink input.
type CreateRequest struct {
	Filename     string `json:"filename"`
	CleanupHours int    `json:"cleanup_hours"`
	Title        string `json:"title"`
}

// CreateDocumentWithDownloadLink creates a fresh document in the managed
// store and returns its public link.
func (s *Service) CreateDocumentWithDownloadLink(ctx context.Context, req CreateRequest) CreateResult {
	display := tempstore.EnsureDocxExtension(req.Filename)
	hours := s.ttlHours(req.CleanupHours)

	rec, err := s.store.CreateFile(ctx, display, display, time.Duration(hours)*time.Hour, func(path string) error {
		h := s.engine.Create()
		if req.Title != "" {
			if err := h.AddHeading(req.Title, 0); err != nil {
				return err
			}
		}
		return h.SaveTo(path)
	})
	if err != nil {
		return CreateResult{
			Success:          false,
			Message:          "Failed to create document: " + publicError(err),
			OriginalFilename: display,
			CleanupHours:     hours,
		}
	}
	return CreateResult{
		Success:          true,
		Message:          fmt.Sprintf("Document %s created successfully", display),
		DownloadURL:      strPtr(s.downloadURL(rec.FileID)),
		FileID:           strPtr(rec.FileID),
		OriginalFilename: display,
		ExpiresAt:        strPtr(rec.ExpiresAt.Format(time.RFC3339)),
		CleanupHours:     hours,
	}
}

// GetDownloadLink looks up the newest live artifact under a logical name.
// The failure envelopes distinguish expired, file-missing, plain-but-
// unregistered, and wholly unknown names.
func (s *Service) GetDownloadLink(ctx context.Context, name string) DownloadLinkResult {
	logical := tempstore.EnsureDocxExtension(name)
	if err := s.store.Reap(ctx, time.Now()); err != nil {
		return DownloadLinkResult{Success: false, Error: publicError(err)}
	}

	rec, err := s.store.Index().LatestByUserFilename(ctx, logical)
	switch {
	case err == nil:
		if _, statErr := os.Stat(rec.FilePath); statErr != nil {
			return DownloadLinkResult{Success: false, Error: "File no longer exists", IsTempFile: boolPtr(true)}
		}
		if rec.Expired(time.Now()) {
			return DownloadLinkResult{Success: false, Error: publicError(tempstore.ErrExpired), IsTempFile: boolPtr(true)}
		}
		return DownloadLinkResult{
			Success:          true,
			DownloadURL:      strPtr(s.downloadURL(rec.FileID)),
			FileID:           strPtr(rec.FileID),
			OriginalFilename: rec.OriginalFilename,
			ExpiresAt:        strPtr(rec.ExpiresAt.Format(time.RFC3339)),
			DownloadCount:    int64Ptr(rec.DownloadCount),
			IsTempFile:       boolPtr(true),
		}
	case errors.Is(err, tempstore.ErrNotFound):
		if _, exists := s.store.PlainPath(logical); exists {
			return DownloadLinkResult{
				Success:    false,
				Error:      fmt.Sprintf("Document %q exists but was never registered for download", logical),
				IsTempFile: boolPtr(false),
			}
		}
		return DownloadLinkResult{
			Success: false,
			Error:   fmt.Sprintf("Document %q not found", logical),
		}
	default:
		return DownloadLinkResult{Success: false, Error: publicError(err)}
	}
}

// ListMyDocuments returns all live, on-disk managed documents, newest first.
func (s *Service) ListMyDocuments(ctx context.Context) ListResult {
	if err := s.store.Reap(ctx, time.Now()); err != nil {
		return ListResult{Success: false, Error: publicError(err), Documents: []DocumentEntry{}}
	}
	recs, err := s.store.Index().ListLive(ctx, time.Now())
	if err != nil {
		return ListResult{Success: false, Error: publicError(err), Documents: []DocumentEntry{}}
	}
	docs := make([]DocumentEntry, 0, len(recs))
	for _, rec := range recs {
		if _, statErr := os.Stat(rec.FilePath); statErr != nil {
			continue
		}
		docs = append(docs, DocumentEntry{
			FileID:           rec.FileID,
			Filename:         rec.UserFilename,
			OriginalFilename: rec.OriginalFilename,
			DownloadURL:      s.downloadURL(rec.FileID),
			CreatedAt:        rec.CreatedAt.Format(time.RFC3339),
			ExpiresAt:        rec.ExpiresAt.Format(time.RFC3339),
			DownloadCount:    rec.DownloadCount,
		})
	}
	return ListResult{Success: true, DocumentCount: len(docs), Documents: docs}
}

// --- single-edit tools ---

func (s *Service) editFailure(name string, err error) EditResult {
	return EditResult{
		Success:  false,
		Error:    publicError(err),
		Filename: tempstore.EnsureDocxExtension(name),
	}
}

func (s *Service) edit(ctx context.Context, name, message string, apply func(document.Handle) error) EditResult {
	logical := tempstore.EnsureDocxExtension(name)
	h, path, err := document.Load(ctx, s.store, s.engine, name)
	if err != nil {
		return s.editFailure(name, err)
	}
	if err := apply(h); err != nil {
		return s.editFailure(name, err)
	}
	if err := document.Save(ctx, s.store, h, name, path); err != nil {
		return s.editFailure(name, err)
	}
	return EditResult{Success: true, Message: message, Filename: logical}
}

// AddParagraph appends a paragraph to the named document.
func (s *Service) AddParagraph(ctx context.Context, name, text string) EditResult {
	msg := fmt.Sprintf("Paragraph added to %s", tempstore.EnsureDocxExtension(name))
	return s.edit(ctx, name, msg, func(h document.Handle) error {
		return h.AddParagraph(text)
	})
}

// AddHeading appends a heading at the given level (1-9).
func (s *Service) AddHeading(ctx context.Context, name, text string, level int) EditResult {
	maxLevel := s.limits.MaxHeadingLvl
	if maxLevel <= 0 || maxLevel > 9 {
		maxLevel = 9
	}
	if level < 1 || level > maxLevel {
		return EditResult{
			Success:  false,
			Error:    fmt.Sprintf("Invalid heading level: %d. Level must be between 1 and %d.", level, maxLevel),
			Filename: tempstore.EnsureDocxExtension(name),
		}
	}
	msg := fmt.Sprintf("Heading %q (level %d) added to %s", text, level, tempstore.EnsureDocxExtension(name))
	return s.edit(ctx, name, msg, func(h document.Handle) error {
		return h.AddHeading(text, level)
	})
}

// AddTable appends a rows x cols table, populated from data row-major.
func (s *Service) AddTable(ctx context.Context, name string, rows, cols int, data [][]string) EditResult {
	if rows <= 0 || cols <= 0 || rows > s.limits.MaxTableRows || cols > s.limits.MaxTableCols {
		return EditResult{
			Success:  false,
			Error:    fmt.Sprintf("Invalid table dimensions %dx%d (max %dx%d)", rows, cols, s.limits.MaxTableRows, s.limits.MaxTableCols),
			Filename: tempstore.EnsureDocxExtension(name),
		}
	}
	msg := fmt.Sprintf("Table (%dx%d) added to %s", rows, cols, tempstore.EnsureDocxExtension(name))
	return s.edit(ctx, name, msg, func(h document.Handle) error {
		return h.AddTable(rows, cols, data)
	})
}

// AddPicture inserts an image from a server-local path.
func (s *Service) AddPicture(ctx context.Context, name, imagePath string) EditResult {
	msg := fmt.Sprintf("Picture added to %s", tempstore.EnsureDocxExtension(name))
	return s.edit(ctx, name, msg, func(h document.Handle) error {
		return h.AddPicture(imagePath)
	})
}

// AddPageBreak appends a page break.
func (s *Service) AddPageBreak(ctx context.Context, name string) EditResult {
	msg := fmt.Sprintf("Page break added to %s", tempstore.EnsureDocxExtension(name))
	return s.edit(ctx, name, msg, func(h document.Handle) error {
		return h.AddPageBreak()
	})
}

// GetDocumentInfo reports size, paragraph count and whether the document
// resolved into the managed store.
func (s *Service) GetDocumentInfo(ctx context.Context, name string) InfoResult {
	logical := tempstore.EnsureDocxExtension(name)
	path, managed, err := s.store.Resolve(ctx, name)
	if err != nil {
		return InfoResult{Success: false, Error: publicError(err), Filename: logical}
	}
	info, err := os.Stat(path)
	if err != nil {
		return InfoResult{Success: false, Error: fmt.Sprintf("Document %q not found", logical), Filename: logical}
	}
	h, err := s.engine.Open(path)
	if err != nil {
		return InfoResult{Success: false, Error: fmt.Sprintf("open document %q: %v", logical, err), Filename: logical}
	}
	return InfoResult{
		Success:        true,
		Filename:       logical,
		Managed:        managed,
		SizeBytes:      info.Size(),
		ParagraphCount: h.ParagraphCount(),
	}
}
