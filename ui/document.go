package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/tts/sentence"
	"github.com/fsnotify/fsnotify"
)

// extractTimeout bounds a single extraction.
const extractTimeout = 2 * time.Minute

// Loader turns the document at path into extracted text.
type Loader func(ctx context.Context, path string) (*extract.Result, error)

// LocalLoader extracts documents in-process.
func LocalLoader(x *extract.Extractor) Loader {
	return func(ctx context.Context, path string) (*extract.Result, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close() //nolint:errcheck

		text, err := x.Extract(ctx, filepath.Base(path), f)
		if err != nil {
			return nil, err
		}
		return &extract.Result{OK: true, Text: text, Meta: extract.Describe(path, text)}, nil
	}
}

// RemoteLoader extracts documents through an extraction server.
func RemoteLoader(c *extract.Client) Loader {
	return c.Extract
}

// document is an extracted, segmented document.
type document struct {
	path  string // empty for piped content
	meta  *extract.Meta
	table sentence.Table
}

func newDocument(path string, res *extract.Result) *document {
	meta := res.Meta
	if meta == nil {
		name := path
		if name == "" {
			name = "stdin.txt"
		}
		meta = extract.Describe(name, res.Text)
	}
	return &document{
		path:  path,
		meta:  meta,
		table: sentence.Segment(res.Text),
	}
}

type (
	documentLoadedMsg struct{ doc *document }
	reloadMsg         struct{}
	editorFinishedMsg struct{ err error }
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func loadDocument(load Loader, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
		defer cancel()

		start := time.Now()
		res, err := load(ctx, path)
		if err != nil {
			log.Error("Extraction failed", "file", path, "error", err)
			return errMsg{err}
		}
		log.Debug("Document extracted", "file", path, "chars", len(res.Text), "took", time.Since(start))
		return documentLoadedMsg{newDocument(path, res)}
	}
}

func openEditor(path string) tea.Cmd {
	c, err := editor.Cmd("Lector", path)
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorFinishedMsg{err}
	})
}

func newWatcher() *fsnotify.Watcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return nil
	}
	return w
}

// watchFile blocks until path is written or recreated. The directory is
// watched so that editors replacing the file are noticed.
func watchFile(w *fsnotify.Watcher, path string) tea.Cmd {
	return func() tea.Msg {
		dir := filepath.Dir(path)
		if err := w.Add(dir); err != nil {
			log.Error("error adding dir to fsnotify watcher", "dir", dir, "error", err)
			return nil
		}
		log.Debug("fsnotify watching dir", "dir", dir)

		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if event.Name != path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				return reloadMsg{}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				log.Debug("fsnotify error", "dir", dir, "error", err)
			}
		}
	}
}
