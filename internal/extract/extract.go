// Package extract turns uploaded documents into plain text ready for
// sentence segmentation, and serves that conversion over HTTP.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/dgnsrekt/lector/internal/observability"
	"golang.org/x/text/unicode/norm"
)

// Format names, as reported in Meta.Format.
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatDocx     = "docx"
	FormatEpub     = "epub"
	FormatPDF      = "pdf"
)

// formats maps accepted extensions to format names.
var formats = map[string]string{
	".txt":      FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".docx":     FormatDocx,
	".epub":     FormatEpub,
	".pdf":      FormatPDF,
}

// mimetypes covers formats the platform mime table may not know.
var mimetypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".epub":     "application/epub+zip",
	".pdf":      "application/pdf",
}

var (
	// ErrMissingFile is returned when a request carries no file.
	ErrMissingFile = errors.New("no file provided")

	// ErrInvalidFilename is returned for an empty filename.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrMissingExtension is returned when the filename has no extension.
	ErrMissingExtension = errors.New("missing file extension")

	// ErrUnsupportedFormat is returned for extensions outside the accepted set.
	ErrUnsupportedFormat = errors.New("unsupported format, accepted formats: PDF, EPUB, DOCX, TXT, MD")

	// ErrNoText is returned when a document holds no readable text.
	ErrNoText = errors.New("no readable text found in this file")
)

// ExtractionError is a failure to read a document. Its message is safe to
// show to the user.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("unable to read the document: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Meta describes an extracted document.
type Meta struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Length   int    `json:"length"`
	Mimetype string `json:"mimetype"`
}

// Result is the JSON body of an extraction response.
type Result struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Meta  *Meta  `json:"meta,omitempty"`
	Error string `json:"error,omitempty"`
}

// Extractor converts documents to text. It is safe for concurrent use.
type Extractor struct {
	cache   *cache.Cache
	metrics *observability.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache caches extracted text by content.
func WithCache(c *cache.Cache) Option {
	return func(x *Extractor) {
		x.cache = c
	}
}

// WithMetrics counts cache hits on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(x *Extractor) {
		x.metrics = m
	}
}

// New creates an extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// FormatOf validates filename and returns its extension and format.
func FormatOf(filename string) (ext, format string, err error) {
	if strings.TrimSpace(filename) == "" {
		return "", "", ErrInvalidFilename
	}
	ext = strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		return "", "", ErrMissingExtension
	}
	format, ok := formats[ext]
	if !ok {
		return "", "", ErrUnsupportedFormat
	}
	return ext, format, nil
}

// Supported reports whether filename has an accepted extension.
func Supported(filename string) bool {
	_, _, err := FormatOf(filename)
	return err == nil
}

// Extensions returns the accepted extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Describe builds the metadata for text extracted from filename.
func Describe(filename, text string) *Meta {
	ext := strings.ToLower(filepath.Ext(filename))
	mt := mimetypes[ext]
	if mt == "" {
		mt = mime.TypeByExtension(ext)
	}
	if mt == "" {
		mt = "application/octet-stream"
	}
	return &Meta{
		Filename: filepath.Base(filename),
		Format:   strings.TrimPrefix(ext, "."),
		Length:   len([]rune(text)),
		Mimetype: mt,
	}
}

// Extract reads r as the document named filename and returns its text,
// with whitespace normalized and paragraphs separated by blank lines.
func (x *Extractor) Extract(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext, format, err := FormatOf(filename)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := cache.Key(append([]byte(ext), data...))
	if x.cache != nil {
		if cached, level, ok := x.cache.Get(key); ok {
			log.Debug("Extraction cache hit", "file", filename, "level", level)
			if x.metrics != nil {
				x.metrics.ExtractCacheHits.Inc()
			}
			return string(cached), nil
		}
	}

	raw, err := x.convert(ctx, format, data)
	if err != nil {
		var extractionErr *ExtractionError
		if errors.As(err, &extractionErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &ExtractionError{Format: format, Err: err}
	}

	text := Normalize(norm.NFC.String(raw))
	if text == "" {
		return "", &ExtractionError{Format: format, Err: ErrNoText}
	}

	if x.cache != nil {
		if err := x.cache.Put(key, []byte(text)); err != nil {
			log.Debug("Failed to cache extraction", "file", filename, "error", err)
		}
	}

	return text, nil
}

func (x *Extractor) convert(ctx context.Context, format string, data []byte) (string, error) {
	switch format {
	case FormatText:
		return decodeText(data)
	case FormatMarkdown:
		return markdownText(data)
	case FormatDocx:
		return docxText(bytes.NewReader(data), int64(len(data)))
	case FormatEpub:
		return epubText(ctx, bytes.NewReader(data), int64(len(data)))
	case FormatPDF:
		return pdfText(ctx, bytes.NewReader(data), int64(len(data)))
	default:
		return "", ErrUnsupportedFormat
	}
}

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Normalize compacts whitespace inside paragraphs and joins paragraphs with
// a single blank line.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs []string
	for _, block := range paragraphBreak.Split(text, -1) {
		if p := strings.TrimSpace(whitespaceRun.ReplaceAllString(block, " ")); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
