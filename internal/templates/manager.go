// Package templates renders email templates with {{variable}} placeholders.
package templates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"
	"sync"
	texttemplate "text/template"

	"shopflow/internal/domain"
)

// Vars maps placeholder names to their values
type Vars map[string]string

// Placeholder names available to every template
const (
	VarFirstName = "first_name"
	VarLastName  = "last_name"
	VarFullName  = "full_name"
	VarEmail     = "email"
	VarCompany   = "company"
	VarShopName  = "shop_name"
)

// CustomerVars returns the placeholder values for one recipient
func CustomerVars(c *domain.Customer, shopName string) Vars {
	return Vars{
		VarFirstName: c.FirstName,
		VarLastName:  c.LastName,
		VarFullName:  c.FullName(),
		VarEmail:     c.Email,
		VarCompany:   c.Company,
		VarShopName:  shopName,
	}
}

// Rendered is a message ready to send
type Rendered struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Actions use control characters as delimiters so braces in the source are
// always literal text.
const (
	leftDelim  = "\x01"
	rightDelim = "\x02"
)

var stripDelims = strings.NewReplacer(leftDelim, "", rightDelim, "")

// translate rewrites {{name}} placeholders into template actions. Unknown
// names render empty.
func translate(src string) string {
	return placeholder.ReplaceAllString(stripDelims.Replace(src), leftDelim+`index . "${1}"`+rightDelim)
}

type compiled struct {
	version int
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

func compile(t *domain.EmailTemplate) (*compiled, error) {
	subject, err := texttemplate.New("subject").Delims(leftDelim, rightDelim).Parse(translate(t.Subject))
	if err != nil {
		return nil, fmt.Errorf("failed to parse subject of template %s: %w", t.ID, err)
	}
	html, err := htmltemplate.New("html").Delims(leftDelim, rightDelim).Parse(translate(t.HTMLBody))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html body of template %s: %w", t.ID, err)
	}
	text, err := texttemplate.New("text").Delims(leftDelim, rightDelim).Parse(translate(t.TextBody))
	if err != nil {
		return nil, fmt.Errorf("failed to parse text body of template %s: %w", t.ID, err)
	}
	return &compiled{version: t.Version, subject: subject, html: html, text: text}, nil
}

// Manager handles template compilation and caching. Compiled templates are
// cached by id and replaced when the stored version changes.
type Manager struct {
	cache map[string]*compiled
	mu    sync.RWMutex
}

// NewManager creates a new template manager
func NewManager() *Manager {
	return &Manager{cache: make(map[string]*compiled)}
}

func (m *Manager) get(t *domain.EmailTemplate) (*compiled, error) {
	m.mu.RLock()
	c, ok := m.cache[t.ID]
	m.mu.RUnlock()
	if ok && c.version == t.Version {
		return c, nil
	}

	c, err := compile(t)
	if err != nil {
		return nil, err
	}
	if t.ID != "" {
		m.mu.Lock()
		m.cache[t.ID] = c
		m.mu.Unlock()
	}
	return c, nil
}

// Validate reports whether a template compiles and renders with empty values
func (m *Manager) Validate(t *domain.EmailTemplate) error {
	c, err := compile(t)
	if err != nil {
		return domain.NewValidationError("template", "%v", err)
	}
	if _, err := c.render(Vars{}); err != nil {
		return domain.NewValidationError("template", "%v", err)
	}
	return nil
}

// Render fills a template's subject and bodies with vars
func (m *Manager) Render(t *domain.EmailTemplate, vars Vars) (Rendered, error) {
	c, err := m.get(t)
	if err != nil {
		return Rendered{}, err
	}
	return c.render(vars)
}

// Invalidate drops the cached form of a template
func (m *Manager) Invalidate(id string) {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
}

// Cached returns the number of compiled templates held
func (m *Manager) Cached() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

func (c *compiled) render(vars Vars) (Rendered, error) {
	if vars == nil {
		vars = Vars{}
	}
	var out Rendered
	var buf bytes.Buffer
	if err := c.subject.Execute(&buf, vars); err != nil {
		return out, fmt.Errorf("failed to render subject: %w", err)
	}
	out.Subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := c.html.Execute(&buf, vars); err != nil {
		return out, fmt.Errorf("failed to render html body: %w", err)
	}
	out.HTMLBody = buf.String()

	buf.Reset()
	if err := c.text.Execute(&buf, vars); err != nil {
		return out, fmt.Errorf("failed to render text body: %w", err)
	}
	out.TextBody = buf.String()
	return out, nil
}

// RenderText fills placeholders of a plain string such as a subject override
func RenderText(s string, vars Vars) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := texttemplate.New("inline").Delims(leftDelim, rightDelim).Parse(translate(s))
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", s, err)
	}
	if vars == nil {
		vars = Vars{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", s, err)
	}
	return buf.String(), nil
}
