package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/dgnsrekt/lector/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// zipOf builds an archive from name/content pairs.
func zipOf(t *testing.T, files ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := 0; i+1 < len(files); i += 2 {
		w, err := zw.Create(files[i])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(files[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const docxDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r><w:r><w:t xml:space="preserve"> Still first.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph.</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`

const epubContainerDoc = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const epubPackageDoc = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="c2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="c1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`

func epubFixture(t *testing.T) []byte {
	return zipOf(t,
		"mimetype", "application/epub+zip",
		"META-INF/container.xml", epubContainerDoc,
		"OEBPS/content.opf", epubPackageDoc,
		"OEBPS/text/chapter1.xhtml", `<html><head><title>Ignored</title><style>p{}</style></head>
<body><h1>Chapter One</h1><p>It was a   dark night.</p><p>The <em>end</em>?</p></body></html>`,
		"OEBPS/text/chapter 2.xhtml", `<html><body><div><p>Second chapter.</p><script>alert(1)</script></div></body></html>`,
	)
}

// pdfFixture builds a PDF with one Helvetica text line per page.
func pdfFixture(t *testing.T, pages ...string) []byte {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var kids []string
	for _, text := range pages {
		pageID := len(objects) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageID+1))
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{
			name:     "plain text",
			filename: "notes.txt",
			data:     []byte("Hello   world.\r\nSame paragraph.\r\n\r\n\r\nNext one."),
			want:     "Hello world. Same paragraph.\n\nNext one.",
		},
		{
			name:     "byte order mark",
			filename: "bom.TXT",
			data:     append([]byte{0xEF, 0xBB, 0xBF}, "Hi."...),
			want:     "Hi.",
		},
		{
			name:     "latin-1 fallback",
			filename: "legacy.txt",
			data:     []byte("Caf\xe9 cr\xe8me."),
			want:     "Café crème.",
		},
		{
			name:     "markdown",
			filename: "readme.md",
			data: []byte("# Title\n\nHello *world*,\nsee <https://example.com>.\n\n" +
				"```go\nfmt.Println()\n```\n\n- one\n- two\n\n![alt text](x.png)\n"),
			want: "Title\n\nHello world, see https://example.com.\n\none\n\ntwo\n\nalt text",
		},
		{
			name:     "docx",
			filename: "report.docx",
			data:     nil, // filled below
			want:     "First paragraph. Still first.\n\nSecond paragraph.",
		},
		{
			name:     "epub",
			filename: "book.epub",
			data:     nil,
			want:     "Chapter One\n\nIt was a dark night.\n\nThe end?\n\nSecond chapter.",
		},
		{
			name:     "pdf",
			filename: "paper.PDF",
			data:     nil,
			want:     "Hello from page one.\n\nPage two says goodbye.",
		},
	}
	tests[4].data = zipOf(t, "word/document.xml", docxDocument)
	tests[5].data = epubFixture(t)
	tests[6].data = pdfFixture(t, "Hello from page one.", "Page   two says goodbye.")

	x := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.Extract(context.Background(), tt.filename, bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
		want     error
	}{
		{"empty filename", " ", "x", ErrInvalidFilename},
		{"no extension", "README", "x", ErrMissingExtension},
		{"trailing dot", "README.", "x", ErrMissingExtension},
		{"unsupported", "image.png", "x", ErrUnsupportedFormat},
		{"blank text", "empty.txt", " \n\n\t", ErrNoText},
	}

	x := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := x.Extract(context.Background(), tt.filename, strings.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractionErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"corrupt pdf", "paper.pdf", []byte("%PDF-1.7")},
		{"pdf without text", "scan.pdf", nil},
		{"corrupt docx", "broken.docx", []byte("not a zip")},
		{"docx without body", "empty.docx", nil},
		{"epub without container", "book.epub", nil},
	}
	tests[1].data = pdfFixture(t, " ")
	tests[3].data = zipOf(t, "word/styles.xml", "<styles/>")
	tests[4].data = zipOf(t, "mimetype", "application/epub+zip")

	x := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := x.Extract(context.Background(), tt.filename, bytes.NewReader(tt.data))
			var extractionErr *ExtractionError
			if !errors.As(err, &extractionErr) {
				t.Fatalf("Extract() error = %v, want *ExtractionError", err)
			}
			if !strings.HasPrefix(err.Error(), "unable to read the document") {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, "book.epub", bytes.NewReader(epubFixture(t)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestExtractCache(t *testing.T) {
	c, err := cache.New(cache.Config{MemoryCapacity: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close() //nolint:errcheck

	m := observability.NewMetrics("test")
	x := New(WithCache(c), WithMetrics(m))

	for range 3 {
		got, err := x.Extract(context.Background(), "a.txt", strings.NewReader("Cached text."))
		if err != nil {
			t.Fatal(err)
		}
		if got != "Cached text." {
			t.Errorf("Extract() = %q", got)
		}
	}
	if hits := testutil.ToFloat64(m.ExtractCacheHits); hits != 2 {
		t.Errorf("cache hits = %v, want 2", hits)
	}

	// The same bytes under another format are a different document.
	if _, err := x.Extract(context.Background(), "a.md", strings.NewReader("Cached text.")); err != nil {
		t.Fatal(err)
	}
	if hits := testutil.ToFloat64(m.ExtractCacheHits); hits != 2 {
		t.Errorf("cache hits = %v, want 2 after format change", hits)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"a\tb   c", "a b c"},
		{"one\n\n\n\ntwo", "one\n\ntwo"},
		{"one\r\rtwo", "one\n\ntwo"},
		{"one\n \t\ntwo\nthree", "one\n\ntwo three"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	meta := Describe("/tmp/docs/Report.DOCX", "Héllo")
	want := Meta{
		Filename: "Report.DOCX",
		Format:   "docx",
		Length:   5,
		Mimetype: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	if *meta != want {
		t.Errorf("Describe() = %+v, want %+v", *meta, want)
	}
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", "c.markdown", "d.docx", "e.epub", "f.pdf"} {
		if !Supported(name) {
			t.Errorf("Supported(%q) = false", name)
		}
	}
	for _, name := range []string{"a.doc", "b", "", "c.html"} {
		if Supported(name) {
			t.Errorf("Supported(%q) = true", name)
		}
	}
	if got := Extensions(); len(got) != 6 || got[0] != ".docx" {
		t.Errorf("Extensions() = %v", got)
	}
}
