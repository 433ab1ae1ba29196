// Package prompt renders the text sent to the completion backend.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Template is a named prompt body parsed once and rendered per request.
// Missing fields are an error so a renamed data field cannot silently
// produce an empty prompt section.
type Template struct {
	Name string
	body *template.Template
}

// NewTemplate parses body with the shared helper functions.
func NewTemplate(name, body string) (*Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: parse: %w", name, err)
	}
	return &Template{Name: name, body: tmpl}, nil
}

// Render executes the template and folds the blank runs left by
// conditional blocks into a single empty line.
func (t *Template) Render(data any) (string, error) {
	var buf strings.Builder
	if err := t.body.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt %s: render: %w", t.Name, err)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(buf.String(), "\n\n")) + "\n", nil
}

// Manager holds the templates of one pipeline, keyed by step name.
// Safe for concurrent use; experts render from it in parallel.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{templates: make(map[string]*Template)}
}

// Register adds tmpl. A name can be registered once; use Override to
// replace a built-in body.
func (m *Manager) Register(tmpl *Template) error {
	if tmpl == nil || tmpl.Name == "" {
		return fmt.Errorf("prompt: template name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.templates[tmpl.Name]; exists {
		return fmt.Errorf("prompt: %s already registered", tmpl.Name)
	}
	m.templates[tmpl.Name] = tmpl
	return nil
}

// RegisterString parses body and registers it under name.
func (m *Manager) RegisterString(name, body string) error {
	tmpl, err := NewTemplate(name, body)
	if err != nil {
		return err
	}
	return m.Register(tmpl)
}

// Override replaces the body registered under name. Unknown names are
// rejected so a typo in a custom prompt set fails loudly.
func (m *Manager) Override(name, body string) error {
	tmpl, err := NewTemplate(name, body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.templates[name]; !exists {
		return fmt.Errorf("prompt: %s is not a known template", name)
	}
	m.templates[name] = tmpl
	return nil
}

// Render renders the template registered under name.
func (m *Manager) Render(name string, data any) (string, error) {
	m.mu.RLock()
	tmpl, ok := m.templates[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("prompt: %s not found", name)
	}
	return tmpl.Render(data)
}

// List returns the registered names in order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir overrides registered templates from <name>.tmpl files in dir.
// Templates without a file keep their built-in body. Returns the names
// that were replaced.
func (m *Manager) LoadDir(dir string) ([]string, error) {
	var loaded []string
	for _, name := range m.List() {
		body, err := os.ReadFile(filepath.Join(dir, name+".tmpl"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("prompt: read %s: %w", name, err)
		}
		if err := m.Override(name, string(body)); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}
