package backend

import (
	"sort"
	"strings"

	"github.com/lihan0705/lead-agent/core"
)

// Compile-time interface check.
var _ core.Backend = (*Composite)(nil)

// Composite routes operations to different backends by path prefix. The
// longest matching route wins; everything else goes to the default backend.
// Routed paths are forwarded unchanged, so a backend mounted at /memories/
// sees /memories/guide.md.
type Composite struct {
	def    core.Backend
	routes map[string]core.Backend
	// prefixes holds route keys sorted longest-first for lookup.
	prefixes []string
}

// NewComposite creates a composite backend. Route keys are normalized to the
// virtual path form with a trailing slash ("/memories/").
func NewComposite(def core.Backend, routes map[string]core.Backend) *Composite {
	c := &Composite{def: def, routes: make(map[string]core.Backend, len(routes))}
	for prefix, b := range routes {
		vp, err := normalizePath(prefix)
		if err != nil {
			continue
		}
		if vp != "/" && !strings.HasSuffix(vp, "/") {
			vp += "/"
		}
		c.routes[vp] = b
		c.prefixes = append(c.prefixes, vp)
	}
	sort.Slice(c.prefixes, func(i, j int) bool { return len(c.prefixes[i]) > len(c.prefixes[j]) })
	return c
}

// route picks the backend responsible for p.
func (c *Composite) route(p string) core.Backend {
	vp, err := normalizePath(p)
	if err != nil {
		return c.def
	}
	if vp != "/" && !strings.HasSuffix(vp, "/") {
		// Allow exact directory hits like "/memories" to route as well.
		vp += "/"
	}
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(vp, prefix) {
			return c.routes[prefix]
		}
	}
	return c.def
}

// Ls implements core.Backend.
func (c *Composite) Ls(p string) ([]core.Entry, error) { return c.route(p).Ls(p) }

// Read implements core.Backend.
func (c *Composite) Read(p string) (string, error) { return c.route(p).Read(p) }

// Write implements core.Backend.
func (c *Composite) Write(p, content string) error { return c.route(p).Write(p, content) }

// Edit implements core.Backend.
func (c *Composite) Edit(p, oldText, newText string, replaceAll bool) (int, error) {
	return c.route(p).Edit(p, oldText, newText, replaceAll)
}

// Glob implements core.Backend. The pattern routes like a path, so
// "/memories/**" searches the mounted store and relative patterns search the
// default backend.
func (c *Composite) Glob(pattern string) ([]string, error) {
	return c.route(pattern).Glob(pattern)
}

// Grep implements core.Backend. The include filter routes like a path when
// set; a bare pattern searches the default backend.
func (c *Composite) Grep(pattern, include string, limit int) ([]core.GrepMatch, error) {
	if include != "" {
		return c.route(include).Grep(pattern, include, limit)
	}
	return c.def.Grep(pattern, include, limit)
}
