package inp

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// SectionFunc parses the lines of one section into the network
type SectionFunc func(net *network.Network, lines []Line) error

type registration struct {
	order int
	fn    SectionFunc
}

// Registry maps section names to parsers. Parsers run in ascending order so
// that options are known before nodes, and nodes before links.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]registration
	opaque  map[string]bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		parsers: map[string]registration{},
		opaque:  map[string]bool{},
	}
}

// Register adds or replaces the parser for a section
func (r *Registry) Register(name string, order int, fn SectionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[strings.ToUpper(name)] = registration{order: order, fn: fn}
}

// Opaque marks a section whose lines are kept verbatim and never parsed
func (r *Registry) Opaque(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.opaque[strings.ToUpper(name)] = true
	}
}

// Lookup returns the parser for a section
func (r *Registry) Lookup(name string) (SectionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.parsers[strings.ToUpper(name)]
	return reg.fn, ok
}

// IsOpaque reports whether a section is kept verbatim
func (r *Registry) IsOpaque(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opaque[strings.ToUpper(name)]
}

// Names lists registered sections in parse order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := r.parsers[names[i]].order, r.parsers[names[j]].order
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}

var (
	defaultRegistry *Registry
	registryOnce    sync.Once
)

// DefaultRegistry returns the registry of built-in section parsers
func DefaultRegistry() *Registry {
	registryOnce.Do(func() {
		r := NewRegistry()
		r.Register("TITLE", 0, parseTitle)
		r.Register("OPTIONS", 10, parseOptions)
		r.Register("TIMES", 20, parseTimes)
		r.Register("PATTERNS", 30, parsePatterns)
		r.Register("CURVES", 40, parseCurves)
		r.Register("JUNCTIONS", 50, parseJunctions)
		r.Register("RESERVOIRS", 60, parseReservoirs)
		r.Register("TANKS", 70, parseTanks)
		r.Register("PIPES", 80, parsePipes)
		r.Register("PUMPS", 90, parsePumps)
		r.Register("VALVES", 100, parseValves)
		r.Register("STATUS", 110, parseStatus)
		r.Register("CONTROLS", 120, parseControls)
		r.Register("RULES", 130, parseRules)
		r.Register("ENERGY", 140, parseEnergy)
		r.Register("REACTIONS", 150, parseReactions)
		r.Register("REPORT", 160, parseReport)
		r.Opaque("COORDINATES", "VERTICES", "LABELS", "BACKDROP", "TAGS", "DEMANDS",
			"QUALITY", "SOURCES", "MIXING", "EMITTERS")
		defaultRegistry = r
	})
	return defaultRegistry
}

// rowErrors accumulates the parse errors of one section
type rowErrors struct {
	section string
	errs    []error
}

func (e *rowErrors) add(l Line, format string, args ...any) {
	e.errs = append(e.errs, newParseError(l, e.section, format, args...))
}

// need reports whether l has at least n fields, recording an error otherwise
func (e *rowErrors) need(l Line, n int) bool {
	if len(l.Fields) < n {
		e.add(l, "expected at least %d fields, got %d", n, len(l.Fields))
		return false
	}
	return true
}

func (e *rowErrors) float(l Line, i int, name string) (float64, bool) {
	if i >= len(l.Fields) {
		e.add(l, "missing %s", name)
		return 0, false
	}
	v, err := strconv.ParseFloat(l.Fields[i], 64)
	if err != nil {
		e.add(l, "invalid %s %q", name, l.Fields[i])
		return 0, false
	}
	return v, true
}

// optFloat returns def when field i is absent
func (e *rowErrors) optFloat(l Line, i int, name string, def float64) (float64, bool) {
	if i >= len(l.Fields) {
		return def, true
	}
	return e.float(l, i, name)
}

func (e *rowErrors) optString(l Line, i int) string {
	if i >= len(l.Fields) {
		return ""
	}
	return l.Fields[i]
}

func (e *rowErrors) wrap(err error, l Line) {
	if err == nil {
		return
	}
	if errors.Is(err, network.ErrDuplicateID) {
		e.add(l, "duplicate identifier %q", l.Fields[0])
		return
	}
	e.add(l, "%v", err)
}

func (e *rowErrors) err() error {
	return errors.Join(e.errs...)
}

func newRowErrors(section string) *rowErrors {
	return &rowErrors{section: section}
}

func fieldsFrom(l Line, i int) string {
	if i >= len(l.Fields) {
		return ""
	}
	return strings.Join(l.Fields[i:], " ")
}

func upper(l Line, i int) string {
	if i >= len(l.Fields) {
		return ""
	}
	return strings.ToUpper(l.Fields[i])
}
