// Package catalog resolves topic ids against the syllabus.
package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"gopkg.in/yaml.v3"
)

var (
	reExt    = regexp.MustCompile(`\.[A-Za-z0-9]+$`)
	reNonAln = regexp.MustCompile(`[^a-z0-9]+`)
)

// Entry is a topic as written in a syllabus file.
type Entry struct {
	ID       string `json:"id,omitempty" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Filename string `json:"originalFilename,omitempty" yaml:"originalFilename"`
}

// Group is a titled list of topics.
type Group struct {
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description"`
	Topics      []Entry `json:"topics" yaml:"topics"`
}

// Syllabus is the document loaded from disk.
type Syllabus struct {
	Groups []Group `json:"groups" yaml:"groups"`
}

// Catalog is an immutable topic index.
type Catalog struct {
	topics []content.Topic
	byID   map[string]int
}

// New indexes s. Entries without an id get "g<group>-t<topic>".
func New(s Syllabus) *Catalog {
	c := &Catalog{byID: make(map[string]int)}
	for gi, g := range s.Groups {
		for ti, e := range g.Topics {
			id := e.ID
			if id == "" {
				id = fmt.Sprintf("g%d-t%d", gi, ti)
			}
			if _, dup := c.byID[id]; dup {
				continue
			}
			c.byID[id] = len(c.topics)
			c.topics = append(c.topics, content.Topic{ID: id, Title: e.Title, Filename: e.Filename, Group: g.Title})
		}
	}
	return c
}

// Load reads a YAML or JSON syllabus file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read syllabus: %w", err)
	}
	var s Syllabus
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &s)
	default:
		err = json.Unmarshal(raw, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse syllabus %s: %w", path, err)
	}
	return New(s), nil
}

// Topics returns every topic in syllabus order.
func (c *Catalog) Topics() []content.Topic {
	out := make([]content.Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// Len is the number of topics.
func (c *Catalog) Len() int { return len(c.topics) }

// Lookup finds a topic by id. Unknown ids are matched loosely against
// filenames and titles, so links built from a document name still resolve.
func (c *Catalog) Lookup(id string) (content.Topic, error) {
	if i, ok := c.byID[id]; ok {
		return c.topics[i], nil
	}
	key := newKey(id)
	if key.loose != "" {
		for _, t := range c.topics {
			if key.matches(t) {
				return t, nil
			}
		}
	}
	return content.Topic{}, fmt.Errorf("topic %q: %w", id, serrors.ErrNotFound)
}

type key struct {
	plain  string
	slug   string
	loose  string
	tokens []string
}

func newKey(s string) key {
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	plain := strings.ToLower(reExt.ReplaceAllString(strings.TrimSpace(s), ""))
	slug := strings.Trim(reNonAln.ReplaceAllString(content.StripAccents(plain), "-"), "-")
	var tokens []string
	for _, tok := range strings.Split(slug, "-") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return key{plain: plain, slug: slug, loose: strings.ReplaceAll(slug, "-", ""), tokens: tokens}
}

func (k key) matches(t content.Topic) bool {
	title, file := newKey(t.Title), newKey(t.Filename)
	switch {
	case k.plain == file.plain || k.plain == title.plain:
		return true
	case k.slug == file.slug || k.slug == title.slug:
		return true
	case title.loose != "" && (strings.Contains(k.loose, title.loose) || strings.Contains(title.loose, k.loose)):
		return true
	case containsAll(title.slug, k.tokens) || (file.slug != "" && containsAll(file.slug, k.tokens)):
		return true
	case containsAll(k.slug, title.tokens):
		return true
	}
	return false
}

func containsAll(s string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(s, tok) {
			return false
		}
	}
	return true
}
