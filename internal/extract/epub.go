package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const epubContainer = "META-INF/container.xml"

type epubContainerXML struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// epubText reads the spine documents of an EPUB in reading order.
func epubText(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("not a valid EPUB archive: %w", err)
	}

	var container epubContainerXML
	if err := decodeXML(zr, epubContainer, &container); err != nil {
		return "", err
	}
	if len(container.Rootfiles) == 0 {
		return "", fmt.Errorf("EPUB container lists no package document")
	}

	opf := container.Rootfiles[0].FullPath
	var pkg epubPackage
	if err := decodeXML(zr, opf, &pkg); err != nil {
		return "", err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	base := path.Dir(opf)
	var paragraphs []string
	for _, ref := range pkg.Spine {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		name := path.Join(base, href)

		f, err := zr.Open(name)
		if err != nil {
			return "", fmt.Errorf("EPUB spine item %s is missing: %w", name, err)
		}
		doc, err := html.Parse(f)
		f.Close() //nolint:errcheck
		if err != nil {
			return "", fmt.Errorf("malformed EPUB document %s: %w", name, err)
		}

		paragraphs = append(paragraphs, htmlBlocks(doc)...)
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

func decodeXML(zr *zip.Reader, name string, v any) error {
	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("EPUB archive has no %s: %w", name, err)
	}
	defer f.Close() //nolint:errcheck

	if err := xml.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("malformed %s: %w", name, err)
	}
	return nil
}

// blockElements start a new paragraph.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Blockquote: true, atom.Tr: true, atom.Br: true,
	atom.Pre: true, atom.Dt: true, atom.Dd: true, atom.Figcaption: true,
}

// skipped elements carry no readable text.
var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
}

// htmlBlocks returns the text of each block in document order.
func htmlBlocks(doc *html.Node) []string {
	var (
		blocks  []string
		current strings.Builder
	)

	flush := func() {
		if text := strings.Join(strings.Fields(current.String()), " "); text != "" {
			blocks = append(blocks, text)
		}
		current.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if blockElements[n.DataAtom] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	return blocks
}
