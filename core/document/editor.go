// Package document wraps the external document-editing engine so that all
// edits target physically resolved paths while callers keep referring to
// documents by logical name.
package document

// Handle is an open document produced by the editing engine. The engine is
// treated as a black box: docserve owns where documents live, the engine
// owns what is inside them.
type Handle interface {
	AddHeading(text string, level int) error
	AddParagraph(text string) error
	AddTable(rows, cols int, data [][]string) error
	AddPicture(imagePath string) error
	AddPageBreak() error
	ParagraphCount() int
	SaveTo(path string) error
}

// Engine creates and opens documents.
type Engine interface {
	Create() Handle
	Open(path string) (Handle, error)
}
