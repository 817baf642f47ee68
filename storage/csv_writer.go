package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"cararth-ingest/models"
)

// CSVWriter records rejected listings to a CSV audit file. Rejected
// records never reach the published sink; this file exists so every
// rejection stays reviewable with its score and explanation.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"id", "source", "title", "brand", "model", "year", "price",
		"trust_score", "explanation", "source_url", "extracted_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Record appends one rejected listing to the audit file.
func (c *CSVWriter) Record(l *models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		l.ID,
		l.Source,
		l.Title,
		l.Brand,
		l.Model,
		strconv.Itoa(l.Year),
		strconv.Itoa(l.Price),
		fmt.Sprintf("%.1f", l.TrustScore),
		strings.ReplaceAll(l.TrustExplanation, "\n", " "),
		l.SourceURL,
		l.ExtractedAt.Format(time.RFC3339),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

var _ RejectedSink = (*CSVWriter)(nil)
