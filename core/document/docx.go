package document

import (
	"fmt"
	"os"

	docx "github.com/fumiama/go-docx"
)

// DocxEngine implements Engine on top of the go-docx library.
type DocxEngine struct{}

// NewDocxEngine returns the .docx editing engine.
func NewDocxEngine() *DocxEngine {
	return &DocxEngine{}
}

func (*DocxEngine) Create() Handle {
	return &docxHandle{file: docx.New().WithDefaultTheme()}
}

func (*DocxEngine) Open(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	file, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return &docxHandle{file: file}, nil
}

type docxHandle struct {
	file *docx.Docx
}

func (h *docxHandle) AddHeading(text string, level int) error {
	if level < 0 || level > 9 {
		return fmt.Errorf("heading level %d out of range", level)
	}
	style := "Title"
	if level > 0 {
		style = fmt.Sprintf("Heading%d", level)
	}
	p := h.file.AddParagraph()
	p.Style(style)
	p.AddText(text)
	return nil
}

func (h *docxHandle) AddParagraph(text string) error {
	h.file.AddParagraph().AddText(text)
	return nil
}

func (h *docxHandle) AddTable(rows, cols int, data [][]string) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("table dimensions %dx%d out of range", rows, cols)
	}
	tbl := h.file.AddTable(rows, cols, 0, nil)
	for r := 0; r < rows && r < len(data); r++ {
		for c := 0; c < cols && c < len(data[r]); c++ {
			if r >= len(tbl.TableRows) || c >= len(tbl.TableRows[r].TableCells) {
				continue
			}
			tbl.TableRows[r].TableCells[c].AddParagraph().AddText(data[r][c])
		}
	}
	return nil
}

func (h *docxHandle) AddPicture(imagePath string) error {
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("image %s: %w", imagePath, err)
	}
	if _, err := h.file.AddParagraph().AddInlineDrawingFrom(imagePath); err != nil {
		return fmt.Errorf("add picture: %w", err)
	}
	return nil
}

func (h *docxHandle) AddPageBreak() error {
	h.file.AddParagraph().AddPageBreaks()
	return nil
}

func (h *docxHandle) ParagraphCount() int {
	n := 0
	for _, item := range h.file.Document.Body.Items {
		if _, ok := item.(*docx.Paragraph); ok {
			n++
		}
	}
	return n
}

func (h *docxHandle) SaveTo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := h.file.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write docx: %w", err)
	}
	return f.Close()
}
