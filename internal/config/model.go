package config

import (
	"errors"
	"fmt"
	"slices"
)

// Model is the unified representation of a scenario.
type Model struct {
	Domain    *Domain
	Layouts   []*Layout
	Transfers []*Transfer
}

// Domain is the problem domain all layouts live in.
type Domain struct {
	Lo       []int
	Hi       []int
	Periodic []bool
}

// Dim returns the number of spatial directions.
func (d *Domain) Dim() int { return len(d.Lo) }

// Contains reports whether b lies inside the domain. Both must have the
// domain's dimension.
func (d *Domain) Contains(b Box) bool {
	for i := range d.Lo {
		if b.Lo[i] < d.Lo[i] || b.Hi[i] > d.Hi[i] {
			return false
		}
	}
	return true
}

// Layout describes one decomposition. Exactly one of Tile, Boxes or From is
// set.
type Layout struct {
	Name string
	// Tile cuts the domain into tiles of this size, dealt round-robin over
	// Ranks ranks (all ranks when zero).
	Tile  []int
	Ranks int
	// Boxes lists the boxes explicitly.
	Boxes []Box
	// From derives the layout from another one, coarsened or refined by
	// Coarsen or Refine.
	From    string
	Coarsen int
	Refine  int
}

// Box is one explicitly placed box.
type Box struct {
	Lo   []int
	Hi   []int
	Proc int
}

// TransferMode selects the kind of plan a transfer builds.
type TransferMode string

const (
	// ModeExchange refreshes the ghost cells of one layout.
	ModeExchange TransferMode = "exchange"
	// ModeCopy copies valid data from one layout to another.
	ModeCopy TransferMode = "copy"
	// ModeGhostToValid copies valid and ghost data of the source.
	ModeGhostToValid TransferMode = "ghost-to-valid"
)

// Transfer is one data motion to plan, run and verify.
type Transfer struct {
	Name        string
	Source      string
	Dest        string
	Mode        TransferMode
	Ghost       []int
	SourceGhost []int
	Shift       []int
	NComp       int
	Iterations  int
	Split       bool
	Trim        bool
	Coarsen     int
}

// Layout returns the layout with the given name, or nil.
func (m *Model) Layout(name string) *Layout {
	i := slices.IndexFunc(m.Layouts, func(l *Layout) bool { return l.Name == name })
	if i < 0 {
		return nil
	}
	return m.Layouts[i]
}

// Validate checks the model's internal consistency. All problems are
// reported together.
func (m *Model) Validate() error {
	var errs []error
	if m.Domain == nil {
		return errors.New("scenario has no domain block")
	}
	dim := m.Domain.Dim()
	domainOK := dim >= 1 && dim <= 3 && len(m.Domain.Hi) == dim
	if !domainOK {
		errs = append(errs, fmt.Errorf("domain: lo and hi must have the same length between 1 and 3, got %d and %d", len(m.Domain.Lo), len(m.Domain.Hi)))
	}
	if len(m.Domain.Periodic) > dim {
		errs = append(errs, fmt.Errorf("domain: %d periodic flags for %d directions", len(m.Domain.Periodic), dim))
	}
	vec := func(what string, v []int, floor int) {
		if v == nil {
			return
		}
		if len(v) != dim {
			errs = append(errs, fmt.Errorf("%s: expected %d values, got %d", what, dim, len(v)))
			return
		}
		for _, x := range v {
			if x < floor {
				errs = append(errs, fmt.Errorf("%s: value %d below %d", what, x, floor))
				return
			}
		}
	}

	seen := map[string]bool{}
	for _, l := range m.Layouts {
		what := fmt.Sprintf("layout %q", l.Name)
		if seen[l.Name] {
			errs = append(errs, fmt.Errorf("%s: defined twice", what))
		}
		seen[l.Name] = true
		kinds := 0
		if l.Tile != nil {
			kinds++
			vec(what+" tile", l.Tile, 1)
		}
		if len(l.Boxes) > 0 {
			kinds++
			for i, b := range l.Boxes {
				vec(fmt.Sprintf("%s box %d lo", what, i), b.Lo, -1<<62)
				vec(fmt.Sprintf("%s box %d hi", what, i), b.Hi, -1<<62)
				if b.Proc < 0 {
					errs = append(errs, fmt.Errorf("%s box %d: negative proc %d", what, i, b.Proc))
				}
				if domainOK && len(b.Lo) == dim && len(b.Hi) == dim && !m.Domain.Contains(b) {
					errs = append(errs, fmt.Errorf("%s box %d: %v..%v lies outside the domain %v..%v",
						what, i, b.Lo, b.Hi, m.Domain.Lo, m.Domain.Hi))
				}
			}
		}
		if l.From != "" {
			kinds++
			if m.Layout(l.From) == nil {
				errs = append(errs, fmt.Errorf("%s: unknown layout %q", what, l.From))
			}
			if (l.Coarsen > 1) == (l.Refine > 1) {
				errs = append(errs, fmt.Errorf("%s: a derived layout needs exactly one of coarsen or refine", what))
			}
		}
		if kinds != 1 {
			errs = append(errs, fmt.Errorf("%s: needs exactly one of tile, box blocks or from", what))
		}
	}
	if len(m.Layouts) == 0 {
		errs = append(errs, errors.New("scenario defines no layouts"))
	}

	for _, t := range m.Transfers {
		what := fmt.Sprintf("transfer %q", t.Name)
		if m.Layout(t.Source) == nil {
			errs = append(errs, fmt.Errorf("%s: unknown source layout %q", what, t.Source))
		}
		if m.Layout(t.Dest) == nil {
			errs = append(errs, fmt.Errorf("%s: unknown dest layout %q", what, t.Dest))
		}
		switch t.Mode {
		case ModeExchange:
			if t.Source != t.Dest {
				errs = append(errs, fmt.Errorf("%s: exchange needs source and dest to be the same layout", what))
			}
			if t.Shift != nil || t.SourceGhost != nil {
				errs = append(errs, fmt.Errorf("%s: exchange takes neither shift nor source_ghost", what))
			}
		case ModeCopy, ModeGhostToValid:
			if t.Split {
				errs = append(errs, fmt.Errorf("%s: split applies to exchange transfers only", what))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown mode %q", what, t.Mode))
		}
		vec(what+" ghost", t.Ghost, 0)
		vec(what+" source_ghost", t.SourceGhost, 0)
		vec(what+" shift", t.Shift, -1<<62)
		if t.NComp < 1 {
			errs = append(errs, fmt.Errorf("%s: ncomp must be positive", what))
		}
		if t.Iterations < 1 {
			errs = append(errs, fmt.Errorf("%s: iterations must be positive", what))
		}
		if t.Coarsen < 0 {
			errs = append(errs, fmt.Errorf("%s: negative coarsen ratio", what))
		}
	}
	return errors.Join(errs...)
}
