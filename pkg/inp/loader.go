// Package inp loads water network description files made of bracketed
// sections ([JUNCTIONS], [PIPES], [OPTIONS], ...) with whitespace separated
// columns and ';' comments.
//
// Loading runs in two passes. The scanner groups lines by section, applying
// the duplicate-section policy as headers repeat. Registered section parsers
// then run in a fixed order over the grouped lines, so the order of sections
// in the file does not matter.
package inp

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// LoadOptions controls how a file is read
type LoadOptions struct {
	Duplicates     DuplicatePolicy
	// Registry defaults to DefaultRegistry()
	Registry       *Registry
	Logger         logging.Logger
	// SkipValidation returns the model without running network.Validate
	SkipValidation bool
}

// Load reads a network from r. Parse errors are returned together as
// *ParseError values joined into one error; a model that parses but breaks
// an invariant returns a *network.ValidationError.
func Load(r io.Reader, opts LoadOptions) (*network.Network, error) {
	logger := logging.OrDefault(opts.Logger).With(logging.Component("inp"))
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	timer := logging.StartTimer(logger, "network loaded")

	set, err := scan(r, opts.Duplicates, logger)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}

	net := network.New()
	var errs []error
	for _, name := range registry.Names() {
		sec := set.get(name)
		if sec == nil {
			continue
		}
		fn, _ := registry.Lookup(name)
		if err := fn(net, sec.lines); err != nil {
			errs = append(errs, err)
		}
	}

	for _, name := range set.order {
		if _, known := registry.Lookup(name); known {
			continue
		}
		if !registry.IsOpaque(name) {
			logger.Debug("ignoring unknown section", logging.Section(name))
		}
		sec := set.get(name)
		raw := make([]string, len(sec.lines))
		for i, l := range sec.lines {
			raw[i] = l.Text
		}
		net.Opaque[name] = raw
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		timer.EndError(err)
		return nil, err
	}

	if !opts.SkipValidation {
		if err := net.Validate(); err != nil {
			timer.EndError(err)
			return nil, err
		}
	}
	for _, v := range net.Lint() {
		logger.Warn("network lint", logging.String("finding", v.Error()))
	}

	timer.End(
		logging.Int("nodes", net.NumNodes()),
		logging.Int("links", net.NumLinks()),
		logging.Int("sections", len(set.order)))
	return net, nil
}

// LoadString parses a network held in memory
func LoadString(s string, opts LoadOptions) (*network.Network, error) {
	return Load(strings.NewReader(s), opts)
}

// LoadFile memory-maps path and parses it
func LoadFile(path string, opts LoadOptions) (*network.Network, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open network file: %w", err)
	}
	defer r.Close()

	logger := logging.OrDefault(opts.Logger)
	opts.Logger = logger.With(logging.Path(path))
	return Load(io.NewSectionReader(r, 0, int64(r.Len())), opts)
}
