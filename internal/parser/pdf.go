package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/schema"

	"memo-rag/internal/models"
)

var (
	ErrNotPDF        = errors.New("not a pdf file")
	ErrEmptyDocument = errors.New("no text could be extracted")
)

// IsPDF checks the extension only, the content is checked by the pdf reader.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// ReadUploads reads files from disk into uploads named after their base
// name. Non pdf names are rejected before anything is read.
func ReadUploads(paths []string) ([]models.Upload, error) {
	uploads := make([]models.Upload, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if !IsPDF(name) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotPDF)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, models.Upload{Name: name, Data: data})
	}
	return uploads, nil
}

// LoadPDFs extracts the text of every page of every upload. Pages keep the
// upload order and the page order within each file.
func LoadPDFs(ctx context.Context, uploads []models.Upload) ([]schema.Document, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrEmptyDocument)
	}

	var pages []schema.Document
	for _, upload := range uploads {
		if !IsPDF(upload.Name) {
			return nil, fmt.Errorf("%s: %w", upload.Name, ErrNotPDF)
		}
		docs, err := loadUpload(ctx, upload)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", upload.Name, err)
		}
		log.Debug().Str("file", upload.Name).Int("pages", len(docs)).Msg("Extracted pdf")
		pages = append(pages, docs...)
	}

	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return pages, nil
}

// loadUpload writes the upload to a temporary file, which is removed again
// once the text is out.
func loadUpload(ctx context.Context, upload models.Upload) ([]schema.Document, error) {
	tmp, err := os.CreateTemp("", "memo-rag-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(upload.Data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return parsePDF(ctx, tmp.Name(), upload.Name)
}

func parsePDF(ctx context.Context, filePath, source string) (docs []schema.Document, err error) {
	// the pdf package panics on some broken files
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: pageText,
			Metadata: map[string]any{
				models.MetaSource:     source,
				models.MetaPage:       i,
				models.MetaTotalPages: numPages,
			},
		})
	}
	return docs, nil
}
