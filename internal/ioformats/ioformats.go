package ioformats

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/zombar/geoanalyzer/internal/analyzer"
)

// maxLineSize bounds a single NDJSON record.
const maxLineSize = 10 * 1024 * 1024

// ReadDocuments reads audit inputs from path. CSV files need a "content"
// header column, NDJSON files hold one document object per line, and
// .html, .md and .txt files are read as a single document named after the
// file. Input is decoded to UTF-8 first.
func ReadDocuments(path string) ([]analyzer.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	contentType := "text/plain"
	if ext == ".html" || ext == ".htm" {
		contentType = "text/html"
	}
	data, err := decodeUTF8(raw, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	switch ext {
	case ".csv":
		return readCSV(data)
	case ".ndjson", ".jsonl":
		return readNDJSON(data)
	case ".html", ".htm":
		return single(path, data, analyzer.FormatHTML)
	case ".md", ".markdown":
		return single(path, data, analyzer.FormatMarkdown)
	case ".txt":
		return single(path, data, analyzer.FormatAuto)
	default:
		// try ndjson then csv
		if docs, err := readNDJSON(data); err == nil {
			return docs, nil
		}
		return readCSV(data)
	}
}

func decodeUTF8(data []byte, contentType string) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	// DetermineEncoding only sniffs the first 1024 bytes
	if utf8.Valid(data) {
		return data, nil
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	return enc.NewDecoder().Bytes(data)
}

func single(path string, data []byte, format analyzer.Format) ([]analyzer.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return []analyzer.Document{{
		ID:      filepath.Base(path),
		Content: string(data),
		Options: analyzer.Options{Format: format},
	}}, nil
}

func readCSV(data []byte) ([]analyzer.Document, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty csv")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["content"]; !ok {
		return nil, errors.New("csv must contain a 'content' header column")
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var docs []analyzer.Document
	for n, row := range rows[1:] {
		content := field(row, "content")
		if content == "" {
			continue
		}
		doc := analyzer.Document{
			ID:      field(row, "id"),
			Content: content,
			Options: analyzer.Options{
				BusinessType: field(row, "business_type"),
				Format:       analyzer.Format(field(row, "format")),
			},
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("row-%d", n+1)
		}
		if kws := field(row, "target_keywords"); kws != "" {
			for _, kw := range strings.Split(kws, ";") {
				doc.Options.TargetKeywords = append(doc.Options.TargetKeywords, strings.TrimSpace(kw))
			}
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents found in csv")
	}
	return docs, nil
}

func readNDJSON(data []byte) ([]analyzer.Document, error) {
	var docs []analyzer.Document
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var doc analyzer.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("line-%d", line)
		}
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents found in ndjson")
	}
	return docs, nil
}

// Record is one line of bulk audit output.
type Record struct {
	ID           string                   `json:"id"`
	OverallScore *float64                 `json:"overall_score,omitempty"`
	Result       *analyzer.AnalysisResult `json:"result,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// Records converts batch results to output records, keeping input order.
func Records(results []analyzer.BatchResult) []Record {
	out := make([]Record, 0, len(results))
	for _, r := range results {
		rec := Record{ID: r.ID, Result: r.Result}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		if r.Result != nil {
			score := r.Result.OverallScore
			rec.OverallScore = &score
		}
		out = append(out, rec)
	}
	return out
}

// WriteNDJSON writes items as NDJSON to w.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}
