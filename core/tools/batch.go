package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docserve/docserve/core/document"
	"github.com/docserve/docserve/core/infra/logging"
	"github.com/docserve/docserve/core/tempstore"
)

// Section is one heading-plus-content block of a batch-assembled document.
type Section struct {
	Heading    string `json:"heading"`
	Level      int    `json:"level"`
	Content    string `json:"content"`
	TableAfter *int   `json:"table_after"`
	PageBreak  bool   `json:"page_break"`
}

// TableSpec describes one table to insert during batch assembly.
type TableSpec struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Data  [][]string `json:"data"`
	Title string     `json:"title"`
}

// BatchRequest describes the batch document-assembly input.
type BatchRequest struct {
	Filename     string      `json:"filename"`
	Title        string      `json:"title"`
	Sections     []Section   `json:"sections"`
	Tables       []TableSpec `json:"tables"`
	CleanupHours int         `json:"cleanup_hours"`
}

// CreateCompleteDocument assembles a full document in one call, written to
// the working directory under its logical name. A failing section is
// skipped and counted, never aborting the rest of the batch.
func (s *Service) CreateCompleteDocument(ctx context.Context, req BatchRequest) BatchResult {
	logical := tempstore.EnsureDocxExtension(req.Filename)
	if fail := s.checkBatch(logical, req); fail != nil {
		return *fail
	}
	path, _ := s.store.PlainPath(logical)
	h := s.engine.Create()
	sections, tables := s.assemble(h, req.Title, req.Sections, req.Tables)
	if err := h.SaveTo(path); err != nil {
		return BatchResult{
			Success:  false,
			Error:    fmt.Sprintf("Failed to create complete document: %v", err),
			Filename: logical,
		}
	}
	return BatchResult{
		Success:           true,
		Message:           fmt.Sprintf("Complete document %q created successfully", logical),
		Filename:          logical,
		SectionsProcessed: sections,
		TablesCreated:     tables,
		TotalSections:     len(req.Sections),
		TotalTables:       len(req.Tables),
	}
}

// CreateCompleteDocumentWithDownloadLink assembles a full document directly
// into the managed store and returns its public link alongside the batch
// statistics.
func (s *Service) CreateCompleteDocumentWithDownloadLink(ctx context.Context, req BatchRequest) BatchResult {
	logical := tempstore.EnsureDocxExtension(req.Filename)
	if fail := s.checkBatch(logical, req); fail != nil {
		return *fail
	}
	hours := s.ttlHours(req.CleanupHours)

	var sections, tables int
	rec, err := s.store.CreateFile(ctx, logical, logical, time.Duration(hours)*time.Hour, func(path string) error {
		h := s.engine.Create()
		sections, tables = s.assemble(h, req.Title, req.Sections, req.Tables)
		return h.SaveTo(path)
	})
	if err != nil {
		return BatchResult{
			Success:  false,
			Error:    "Failed to create document with download link: " + publicError(err),
			Filename: logical,
		}
	}
	return BatchResult{
		Success:           true,
		Message:           fmt.Sprintf("Complete document %q created successfully", logical),
		Filename:          logical,
		SectionsProcessed: sections,
		TablesCreated:     tables,
		TotalSections:     len(req.Sections),
		TotalTables:       len(req.Tables),
		DownloadURL:       strPtr(s.downloadURL(rec.FileID)),
		FileID:            strPtr(rec.FileID),
		OriginalFilename:  rec.OriginalFilename,
		ExpiresAt:         strPtr(rec.ExpiresAt.Format(time.RFC3339)),
		CleanupHours:      hours,
		IsTempFile:        true,
	}
}

func (s *Service) checkBatch(logical string, req BatchRequest) *BatchResult {
	if len(req.Sections) > s.limits.MaxSections {
		return &BatchResult{
			Success:       false,
			Error:         fmt.Sprintf("Too many sections: %d (max %d)", len(req.Sections), s.limits.MaxSections),
			Filename:      logical,
			TotalSections: len(req.Sections),
			TotalTables:   len(req.Tables),
		}
	}
	return nil
}

// assemble writes title, sections and tables onto the handle, returning how
// many of each succeeded.
func (s *Service) assemble(h document.Handle, title string, sections []Section, tables []TableSpec) (int, int) {
	if title != "" {
		if err := h.AddHeading(title, 0); err != nil {
			logging.Error("tools", "batch title failed", "error", err)
		}
	}

	sectionsProcessed := 0
	tablesCreated := 0
	used := make(map[int]bool)

	for i, sec := range sections {
		if err := s.writeSection(h, sec); err != nil {
			logging.Error("tools", "batch section skipped", "index", i, "error", err)
			continue
		}
		if sec.TableAfter != nil {
			idx := *sec.TableAfter
			if idx >= 0 && idx < len(tables) && !used[idx] {
				used[idx] = true
				if s.insertTable(h, tables[idx]) {
					tablesCreated++
				}
			}
		}
		sectionsProcessed++
	}

	for i, tbl := range tables {
		if used[i] {
			continue
		}
		if s.insertTable(h, tbl) {
			tablesCreated++
		}
	}
	return sectionsProcessed, tablesCreated
}

func (s *Service) writeSection(h document.Handle, sec Section) error {
	if sec.Heading != "" {
		level := sec.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		if err := h.AddHeading(sec.Heading, level); err != nil {
			return err
		}
	}
	if sec.Content != "" {
		for _, para := range strings.Split(sec.Content, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if err := h.AddParagraph(para); err != nil {
				return err
			}
		}
	}
	if sec.PageBreak {
		return h.AddPageBreak()
	}
	return nil
}

func (s *Service) insertTable(h document.Handle, tbl TableSpec) bool {
	rows, cols := tbl.Rows, tbl.Cols
	if rows <= 0 || cols <= 0 || rows > s.limits.MaxTableRows || cols > s.limits.MaxTableCols {
		return false
	}
	if tbl.Title != "" {
		if err := h.AddParagraph(tbl.Title); err != nil {
			return false
		}
	}
	if err := h.AddTable(rows, cols, tbl.Data); err != nil {
		logging.Error("tools", "batch table failed", "error", err)
		return false
	}
	return true
}
