// Package model defines the records the service persists. Struct tags map
// fields to SQLite columns (`db`) and API responses (`json`).
package model

import "time"

// ConversionStatus is the terminal state of one pipeline run.
type ConversionStatus string

const (
	StatusResolved ConversionStatus = "resolved"
	StatusFailed   ConversionStatus = "failed"
)

// ConversionSource says how the image reached the pipeline.
type ConversionSource string

const (
	SourceDialog ConversionSource = "dialog"
	SourcePath   ConversionSource = "path"
	SourceUpload ConversionSource = "upload"
	SourceURL    ConversionSource = "url"
)

// Conversion is one row of the conversion log. The resulting data URL is
// never stored, only its length.
type Conversion struct {
	ID           int64            `db:"id" json:"id"`
	Source       ConversionSource `db:"source" json:"source"`
	FileName     string           `db:"file_name" json:"file_name"`
	MimeType     string           `db:"mime_type" json:"mime_type"`
	FileSize     int64            `db:"file_size" json:"file_size"`
	Options      string           `db:"options" json:"options"`
	Status       ConversionStatus `db:"status" json:"status"`
	ErrorKind    string           `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	Width        int              `db:"width" json:"width"`
	Height       int              `db:"height" json:"height"`
	OutputLength int              `db:"output_length" json:"output_length"`
	DurationMs   int64            `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// KindCount is a count of failed conversions grouped by error kind.
type KindCount struct {
	Kind  string `db:"error_kind" json:"kind"`
	Count int64  `db:"count" json:"count"`
}
