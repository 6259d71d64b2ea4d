// Package sop maintains the facility's standard operating procedure
// library. Documents are loaded from a directory at startup (plain text,
// Markdown, HTML and PDF are all accepted) and matched against issue
// descriptions so their steps can ground both ticket guidance and analysis
// prompts.
package sop

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Document is one procedure: a title and an ordered list of steps.
type Document struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
	Steps    []string `json:"steps"`
	Source   string   `json:"source"`
}

// Library holds the loaded procedures and answers lookup queries.
type Library struct {
	docs []Document
	byID map[string]int
}

// NewLibrary builds a Library from pre-parsed documents. Used by tests and
// by callers that assemble procedures programmatically.
func NewLibrary(docs []Document) *Library {
	lib := &Library{docs: docs, byID: make(map[string]int, len(docs))}
	for i, d := range docs {
		lib.byID[d.ID] = i
	}
	return lib
}

// LoadDir reads every supported file in dir into a Library. Files that fail
// to parse are skipped with a warning; a missing directory yields an empty
// library rather than an error so the service can run without procedures.
func LoadDir(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("sop directory missing, starting with empty library", "dir", dir)
			return NewLibrary(nil), nil
		}
		return nil, fmt.Errorf("reading sop directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := loadFile(path)
		if err != nil {
			slog.Warn("skipping sop document", "path", path, "error", err)
			continue
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	slog.Info("sop library loaded", "dir", dir, "documents", len(docs))
	return NewLibrary(docs), nil
}

func loadFile(path string) (Document, error) {
	var text string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	case ".html", ".htm":
		text, err = extractHTML(path)
	case ".pdf":
		text, err = extractPDF(path)
	default:
		return Document{}, fmt.Errorf("unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return Document{}, err
	}
	return Parse(docID(path), path, text)
}

// Parse turns raw document text into a Document. The first non-empty line
// is the title; numbered or bulleted lines become steps, or every remaining
// non-empty line when the document carries no list markers at all.
func Parse(id, source, text string) (Document, error) {
	lines := strings.Split(text, "\n")

	var title string
	var steps, plain []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title == "" {
			title = strings.TrimLeft(line, "# ")
			continue
		}
		if step, ok := stripListMarker(line); ok {
			steps = append(steps, step)
		} else {
			plain = append(plain, line)
		}
	}
	if title == "" {
		return Document{}, fmt.Errorf("document %s is empty", source)
	}
	if len(steps) == 0 {
		steps = plain
	}

	return Document{
		ID:       id,
		Title:    title,
		Keywords: keywordsFor(title),
		Steps:    steps,
		Source:   source,
	}, nil
}

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-*•])\s+`)

func stripListMarker(line string) (string, bool) {
	loc := listMarker.FindStringIndex(line)
	if loc == nil {
		return line, false
	}
	return strings.TrimSpace(line[loc[1]:]), true
}

func docID(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ToLower(base)
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, base)
}

// stopwords excluded when deriving match keywords from a title.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "for": true,
	"of": true, "to": true, "in": true, "on": true, "sop": true,
	"procedure": true, "guide": true, "how": true,
}

func keywordsFor(title string) []string {
	var kws []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,:;()")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		kws = append(kws, w)
	}
	return kws
}

// All returns the documents in stable ID order.
func (l *Library) All() []Document {
	return l.docs
}

// Get returns the document with the given ID.
func (l *Library) Get(id string) (Document, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Document{}, false
	}
	return l.docs[i], true
}

// Match finds the procedure whose keywords best overlap the description.
// Returns false when no document shares a keyword with the text.
func (l *Library) Match(description string) (Document, bool) {
	desc := strings.ToLower(description)

	best := -1
	bestScore := 0
	for i, doc := range l.docs {
		score := 0
		for _, kw := range doc.Keywords {
			if strings.Contains(desc, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Document{}, false
	}
	return l.docs[best], true
}

// StepsFor returns the matched procedure's steps for the description, or
// nil when nothing matches.
func (l *Library) StepsFor(description string) []string {
	doc, ok := l.Match(description)
	if !ok {
		return nil
	}
	return doc.Steps
}
