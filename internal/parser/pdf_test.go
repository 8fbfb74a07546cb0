package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"memo-rag/internal/models"
	"memo-rag/internal/pdftest"
)

func TestIsPDF(t *testing.T) {
	tests := map[string]bool{
		"minutes.pdf":  true,
		"MINUTES.PDF":  true,
		"a.b.Pdf":      true,
		"minutes.docx": false,
		"pdf":          false,
		"":             false,
	}
	for name, want := range tests {
		if got := IsPDF(name); got != want {
			t.Errorf("IsPDF(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestLoadPDFsKeepsUploadAndPageOrder(t *testing.T) {
	uploads := []models.Upload{
		{Name: "first.pdf", Data: pdftest.Build("Alice will send the report by Friday.", "Decision: use vendor X.")},
		{Name: "second.pdf", Data: pdftest.Build("Bob owns the budget review.")},
	}

	pages, err := LoadPDFs(context.Background(), uploads)
	if err != nil {
		t.Fatalf("LoadPDFs: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	want := []struct {
		source string
		page   int
		text   string
	}{
		{"first.pdf", 1, "Alice will send the report by Friday."},
		{"first.pdf", 2, "Decision: use vendor X."},
		{"second.pdf", 1, "Bob owns the budget review."},
	}
	for i, w := range want {
		doc := pages[i]
		if doc.Metadata[models.MetaSource] != w.source || doc.Metadata[models.MetaPage] != w.page {
			t.Errorf("page %d metadata = %v, want %s/%d", i, doc.Metadata, w.source, w.page)
		}
		if !strings.Contains(doc.PageContent, w.text) {
			t.Errorf("page %d text = %q, want it to contain %q", i, doc.PageContent, w.text)
		}
	}
	if pages[0].Metadata[models.MetaTotalPages] != 2 {
		t.Errorf("total pages = %v", pages[0].Metadata[models.MetaTotalPages])
	}
}

func TestLoadPDFsErrors(t *testing.T) {
	tests := []struct {
		name    string
		uploads []models.Upload
		is      error
		msg     string
	}{
		{"none", nil, ErrEmptyDocument, ""},
		{"not pdf", []models.Upload{{Name: "notes.txt", Data: []byte("hello")}}, ErrNotPDF, "notes.txt"},
		{"garbage", []models.Upload{{Name: "broken.pdf", Data: []byte("this is not a pdf")}}, nil, "broken.pdf"},
		{"blank", []models.Upload{{Name: "blank.pdf", Data: pdftest.Build("   ")}}, ErrEmptyDocument, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPDFs(context.Background(), tt.uploads)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %v, want it to name %q", err, tt.msg)
			}
		})
	}
}

func TestLoadPDFsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadPDFs(ctx, []models.Upload{{Name: "a.pdf", Data: pdftest.Build("text")}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReadUploads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Minutes.PDF")
	if err := os.WriteFile(path, pdftest.Build("Alice will send the report by Friday."), 0o644); err != nil {
		t.Fatal(err)
	}

	uploads, err := ReadUploads([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 || uploads[0].Name != "Minutes.PDF" || len(uploads[0].Data) == 0 {
		t.Fatalf("uploads = %+v", uploads)
	}

	if _, err := ReadUploads([]string{filepath.Join(dir, "notes.txt")}); !errors.Is(err, ErrNotPDF) {
		t.Errorf("err = %v, want ErrNotPDF", err)
	}
	if _, err := ReadUploads([]string{filepath.Join(dir, "missing.pdf")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
