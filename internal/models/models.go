package models

import "fmt"

// SourceFile is one file discovered under the ingestion root.
type SourceFile struct {
	Path        string `json:"path"`         // absolute path, also the hashing key
	Extension   string `json:"extension"`    // lower-cased, with the leading dot
	Size        int64  `json:"size"`         // bytes
	ContentType string `json:"content_type"` // MIME type detected from the extension
}

// ExtractionResult is the outcome of extracting one SourceFile.
// Exactly one of Content (on success) or Err (on failure) is meaningful.
type ExtractionResult struct {
	File    SourceFile
	Content string
	Err     error
}

// Failed reports whether extraction did not produce any content.
func (r ExtractionResult) Failed() bool {
	return r.Err != nil
}

// Message is the human-readable cause of a failed extraction.
func (r ExtractionResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("error processing %s: %v", r.File.Path, r.Err)
}

// Chunk is one ordered text segment of a file's content.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DocumentRecord is one persisted row of the docs table.
type DocumentRecord struct {
	ID        string    `db:"id" json:"id"` // "{parent_id}-{chunk_index}"
	Source    string    `db:"source" json:"source"`
	Type      string    `db:"type" json:"type"`
	Chunk     string    `db:"chunk" json:"chunk"`
	Embedding []float32 `db:"embedding" json:"embedding"` // pgvector column
	ParentID  string    `db:"parent_id" json:"parent_id"`
}

// IngestFailure records one file that could not be (fully) ingested.
type IngestFailure struct {
	Path    string `json:"path"`
	Stage   string `json:"stage"` // extract | chunk | embed | store
	Message string `json:"message"`
}
