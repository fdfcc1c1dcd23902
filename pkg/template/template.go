package template

import (
	"errors"
	"strings"
	"sync"

	"github.com/hearthside/relay/pkg/types"
)

// ErrUnknownTemplate is returned when rendering references an
// unregistered template id
var ErrUnknownTemplate = errors.New("unknown template")

// Engine renders named templates against variable bindings, per
// transport variant. The engine is pure: rendering performs no I/O.
type Engine struct {
	mu        sync.RWMutex
	templates map[string]types.Template
}

// NewEngine creates an empty template engine
func NewEngine() *Engine {
	return &Engine{
		templates: make(map[string]types.Template),
	}
}

// Register adds or replaces a template
func (e *Engine) Register(tmpl types.Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.ID] = tmpl
}

// Get returns a registered template
func (e *Engine) Get(id string) (types.Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tmpl, ok := e.templates[id]
	return tmpl, ok
}

// Render resolves the template variant for the transport and substitutes
// bindings. When the template has no variant for the transport the
// fallback body is used (and substitution still applies). The returned
// bool reports whether a template variant was used.
func (e *Engine) Render(id string, transport types.TransportKind, vars map[string]string, fallback string) (string, bool, error) {
	if id == "" {
		return Substitute(fallback, vars), false, nil
	}

	tmpl, ok := e.Get(id)
	if !ok {
		return "", false, ErrUnknownTemplate
	}

	body, ok := tmpl.Variants[transport]
	if !ok {
		return Substitute(fallback, vars), false, nil
	}
	return Substitute(body, vars), true, nil
}

// Substitute replaces {name} placeholders with bound values. A missing
// binding leaves the placeholder literal in the output. Substituted
// values are never re-scanned.
func Substitute(body string, vars map[string]string) string {
	if len(vars) == 0 {
		return body
	}

	var sb strings.Builder
	sb.Grow(len(body))

	for {
		open := strings.IndexByte(body, '{')
		if open < 0 {
			sb.WriteString(body)
			break
		}
		closing := strings.IndexByte(body[open:], '}')
		if closing < 0 {
			sb.WriteString(body)
			break
		}
		closing += open

		name := body[open+1 : closing]
		sb.WriteString(body[:open])
		if val, ok := vars[name]; ok {
			sb.WriteString(val)
		} else {
			sb.WriteString(body[open : closing+1])
		}
		body = body[closing+1:]
	}
	return sb.String()
}
