// Package ingestion turns source documents into a searchable store. It
// loads text, markdown, and PDF files, normalizes their text, chunks and
// embeds them, and assembles a fully built local store that the pipeline
// publishes atomically. This package backs the `textfinder ingest` CLI
// command and the server's reindex endpoint.
package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// supportedExtensions maps a lowercase file extension to whether the loader
// can extract text from it.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
}

// Supported reports whether files with the given extension can be loaded.
func Supported(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// LoadFile reads one document from disk. The document ID defaults to the
// file's base name; LoadDir replaces it with the path relative to the
// ingest root.
func LoadFile(path string) (rag.Document, error) {
	text, err := extractText(path)
	if err != nil {
		return rag.Document{}, err
	}
	// Infer from the base name only; absolute path segments say nothing
	// about the topic. LoadDir re-infers from the ingest-relative path.
	inferred := InferMetadata(filepath.Base(path))
	return rag.Document{
		ID:      filepath.Base(path),
		RawText: text,
		Metadata: map[string]string{
			"source":    path,
			"file_type": inferred.FileType,
			"topic":     inferred.Topic,
		},
	}, nil
}

// LoadDir loads every supported file under dir, walking in lexical order so
// repeated runs over the same tree produce the same document sequence.
// Unsupported files are skipped with a debug log; a failed load aborts the
// walk.
func LoadDir(ctx context.Context, log *slog.Logger, dir string) ([]rag.Document, error) {
	if log == nil {
		log = slog.Default()
	}

	var docs []rag.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !Supported(filepath.Ext(path)) {
			log.Debug("ingestion: skipping unsupported file", slog.String("path", path))
			return nil
		}

		doc, err := LoadFile(path)
		if err != nil {
			return err
		}
		if rel, relErr := filepath.Rel(dir, path); relErr == nil {
			doc.ID = filepath.ToSlash(rel)
			doc.Metadata["topic"] = InferMetadata(doc.ID).Topic
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: load directory %s: %w", dir, err)
	}

	log.Info("ingestion: loaded documents", slog.String("dir", dir), slog.Int("count", len(docs)))
	return docs, nil
}

// extractText dispatches on the file extension.
func extractText(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".text", ".md", ".markdown":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("ingestion: read %s: %w", path, err)
		}
		return string(b), nil
	case ".pdf":
		return extractPDF(path)
	default:
		return "", fmt.Errorf("ingestion: unsupported file type %q", ext)
	}
}

// extractPDF pulls the plain text out of a PDF file.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: open pdf %s: %w", path, err)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("ingestion: extract pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", fmt.Errorf("ingestion: read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}
