package templates

import (
	"regexp"
	"sort"
	"sync"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Template is one registered message template. Bodies use {{key}} tokens.
type Template struct {
	ID   string
	Body string
}

// FallbackBody is returned when a template id cannot be resolved, so a typo in
// rule configuration degrades to a generic message instead of failing a plan.
const FallbackBody = "Hi {{client_name}}, this is {{business_name}} about your upcoming appointment on {{date}} at {{time}}. Please contact us at {{business_phone}} if anything has changed."

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Registry resolves template ids to bodies across named groups and renders
// them. Lookups are read-mostly; registration happens at startup and rarely
// after, so a RWMutex is enough.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Template
	logger *logging.Logger
}

// NewRegistry creates a registry preloaded with the default message catalog.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Registry{
		groups: make(map[string]map[string]Template),
		logger: logger,
	}
	r.Register("default", DefaultCatalog()...)
	return r
}

// Register adds or replaces templates within a group.
func (r *Registry) Register(group string, tmpls ...Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[group]
	if !ok {
		g = make(map[string]Template)
		r.groups[group] = g
	}
	for _, t := range tmpls {
		g[t.ID] = t
	}
}

// Lookup finds a template by id across all groups.
func (r *Registry) Lookup(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	// Deterministic group order so a duplicated id resolves stably.
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if t, ok := r.groups[name][id]; ok {
			return t, true
		}
	}
	return Template{}, false
}

// Render resolves a template id and substitutes every {{key}} token with the
// matching variable. Missing variables render as empty string, never as the
// literal token; an unknown id logs and falls back to a generic message.
func (r *Registry) Render(id string, vars map[string]string) string {
	tmpl, ok := r.Lookup(id)
	if !ok {
		r.logger.Warn("templates: unknown template id, using fallback", "template_id", id)
		tmpl = Template{ID: id, Body: FallbackBody}
	}
	return Substitute(tmpl.Body, vars)
}

// Substitute performs the single token-replacement pass over a body.
func Substitute(body string, vars map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := tokenPattern.FindStringSubmatch(match)[1]
		return vars[key]
	})
}
