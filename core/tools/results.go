package tools

// Tool operations return a closed set of result variants rather than loose
// maps: every failure is tagged by its envelope fields, and download-link
// lookups carry the tri-state is_temp_file marker (true: known to the temp
// store, false: plain file never registered, null: not found anywhere).

// CreateResult is returned by document creation tools.
type CreateResult struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	DownloadURL      *string `json:"download_url"`
	FileID           *string `json:"file_id"`
	OriginalFilename string  `json:"original_filename"`
	ExpiresAt        *string `json:"expires_at"`
	CleanupHours     int     `json:"cleanup_hours"`
}

// DownloadLinkResult is returned by GetDownloadLink.
type DownloadLinkResult struct {
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	DownloadURL      *string `json:"download_url"`
	FileID           *string `json:"file_id"`
	OriginalFilename string  `json:"original_filename,omitempty"`
	ExpiresAt        *string `json:"expires_at,omitempty"`
	DownloadCount    *int64  `json:"download_count,omitempty"`
	IsTempFile       *bool   `json:"is_temp_file"`
}

// DocumentEntry is one row of ListMyDocuments output.
type DocumentEntry struct {
	FileID           string `json:"file_id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	DownloadURL      string `json:"download_url"`
	CreatedAt        string `json:"created_at"`
	ExpiresAt        string `json:"expires_at"`
	DownloadCount    int64  `json:"download_count"`
}

// ListResult is returned by ListMyDocuments.
type ListResult struct {
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
	DocumentCount int             `json:"document_count"`
	Documents     []DocumentEntry `json:"documents"`
}

// EditResult is returned by single-edit tools (paragraph, heading, table,
// picture, page break).
type EditResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Filename string `json:"filename"`
}

// InfoResult is returned by GetDocumentInfo.
type InfoResult struct {
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	Filename       string `json:"filename"`
	Managed        bool   `json:"managed"`
	SizeBytes      int64  `json:"size_bytes,omitempty"`
	ParagraphCount int    `json:"paragraph_count,omitempty"`
}

// BatchResult is returned by the batch section-assembly tools.
type BatchResult struct {
	Success           bool    `json:"success"`
	Message           string  `json:"message,omitempty"`
	Error             string  `json:"error,omitempty"`
	Filename          string  `json:"filename"`
	SectionsProcessed int     `json:"sections_processed"`
	TablesCreated     int     `json:"tables_created"`
	TotalSections     int     `json:"total_sections"`
	TotalTables       int     `json:"total_tables"`
	DownloadURL       *string `json:"download_url,omitempty"`
	FileID            *string `json:"file_id,omitempty"`
	OriginalFilename  string  `json:"original_filename,omitempty"`
	ExpiresAt         *string `json:"expires_at,omitempty"`
	CleanupHours      int     `json:"cleanup_hours,omitempty"`
	IsTempFile        bool    `json:"is_temp_file,omitempty"`
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }
