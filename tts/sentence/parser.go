// Package sentence splits extracted document text into the sentence table
// used for playback and highlighting.
package sentence

import (
	"strings"
	"time"
	"unicode"

	"github.com/dgnsrekt/lector/tts"
)

// wordsPerMinute is the speaking rate assumed at rate 1.0.
const wordsPerMinute = 150.0

// Cell is the renderable form of a sentence: its text plus the separator
// that follows it within the paragraph.
type Cell struct {
	Index     int    // Sentence index
	Paragraph int    // Paragraph the sentence belongs to
	Text      string // Sentence text, with a trailing space unless last in its paragraph
}

// Table is the result of segmenting a document.
type Table struct {
	Sentences  []tts.Sentence
	Cells      []Cell
	Paragraphs int
}

// Len returns the number of sentences.
func (t Table) Len() int {
	return len(t.Sentences)
}

// Paragraph returns the cells of paragraph p in order.
func (t Table) Paragraph(p int) []Cell {
	var cells []Cell
	for _, c := range t.Cells {
		if c.Paragraph == p {
			cells = append(cells, c)
		}
	}
	return cells
}

// Parser implements tts.SentenceParser.
type Parser struct{}

// NewParser creates a new sentence parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse returns the sentence table for text.
func (p *Parser) Parse(text string) []tts.Sentence {
	return Segment(text).Sentences
}

// Segment splits raw text into paragraphs and sentences.
//
// Line endings are normalized to LF. Two or more consecutive newlines end a
// paragraph. Within a paragraph, a sentence ends at a whitespace run that
// immediately follows '.', '!' or '?', or at a run of newlines. Fragments are
// trimmed and empty ones dropped; indices run across paragraphs.
func Segment(raw string) Table {
	var t Table

	for _, para := range splitParagraphs(normalizeNewlines(raw)) {
		frags := splitSentences(para)
		if len(frags) == 0 {
			continue
		}

		for j, frag := range frags {
			idx := len(t.Sentences)
			t.Sentences = append(t.Sentences, tts.Sentence{Index: idx, Text: frag})

			cell := frag
			if j < len(frags)-1 {
				cell += " "
			}
			t.Cells = append(t.Cells, Cell{Index: idx, Paragraph: t.Paragraphs, Text: cell})
		}
		t.Paragraphs++
	}

	return t
}

// EstimateDuration estimates how long text takes to speak at rate.
func EstimateDuration(text string, rate float64) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	if rate <= 0 {
		rate = 1.0
	}

	seconds := float64(words) * 60.0 / (wordsPerMinute * rate)
	return time.Duration(seconds * float64(time.Second))
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// splitParagraphs splits on runs of two or more newlines.
func splitParagraphs(text string) []string {
	var paras []string
	start := 0

	for i := 0; i < len(text); {
		if text[i] != '\n' {
			i++
			continue
		}

		j := i
		for j < len(text) && text[j] == '\n' {
			j++
		}
		if j-i >= 2 {
			paras = append(paras, text[start:i])
			start = j
		}
		i = j
	}

	return append(paras, text[start:])
}

// splitSentences scans a single paragraph for sentence boundaries.
func splitSentences(para string) []string {
	var frags []string
	runes := []rune(para)
	start := 0

	emit := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			frags = append(frags, s)
		}
	}

	for i := 0; i < len(runes); {
		switch {
		case runes[i] == '\n':
			emit(i)
			j := i
			for j < len(runes) && runes[j] == '\n' {
				j++
			}
			start, i = j, j

		case isTerminal(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]):
			emit(i + 1)
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start, i = j, j

		default:
			i++
		}
	}
	emit(len(runes))

	return frags
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
