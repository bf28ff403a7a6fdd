package tools

import (
	"errors"
	"testing"
)

func TestValidateRequestAcceptsValidPayloads(t *testing.T) {
	cases := map[string]string{
		"create_document_with_download_link":          `{"filename":"report","cleanup_hours":48,"title":"Q3"}`,
		"get_download_link":                           `{"filename":"report"}`,
		"list_my_documents":                           `{}`,
		"add_paragraph":                               `{"filename":"report","text":"hello"}`,
		"add_heading":                                 `{"filename":"report","text":"Intro","level":2}`,
		"add_table":                                   `{"filename":"report","rows":2,"cols":2,"data":[["a","b"]]}`,
		"add_picture":                                 `{"filename":"report","image_path":"/tmp/x.png"}`,
		"add_page_break":                              `{"filename":"report"}`,
		"get_document_info":                           `{"filename":"report"}`,
		"create_complete_document":                    `{"filename":"report","sections":[{"heading":"A","level":1,"content":"x"}]}`,
		"create_complete_document_with_download_link": `{"filename":"report","sections":[{"content":"x","table_after":0}],"tables":[{"rows":1,"cols":1}]}`,
	}
	for tool, payload := range cases {
		if err := ValidateRequest(tool, []byte(payload)); err != nil {
			t.Errorf("%s: %v", tool, err)
		}
	}
}

func TestValidateRequestRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"create_document_with_download_link": `{}`,
		"get_download_link":                  `{"filename":""}`,
		"add_heading":                        `{"filename":"r","text":"x","level":0}`,
		"add_table":                          `{"filename":"r","rows":0,"cols":1}`,
		"add_paragraph":                      `{"filename":"r","text":"x","extra":true}`,
		"create_complete_document":           `{"filename":"r"}`,
	}
	for tool, payload := range cases {
		if err := ValidateRequest(tool, []byte(payload)); err == nil {
			t.Errorf("%s: payload %s accepted", tool, payload)
		}
	}
}

func TestValidateRequestUnknownTool(t *testing.T) {
	err := ValidateRequest("summon_document", []byte(`{}`))
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v", err)
	}
}

func TestToolNamesCoversEveryTool(t *testing.T) {
	names := ToolNames()
	if len(names) != 11 {
		t.Fatalf("tool count %d, want 11: %v", len(names), names)
	}
}
