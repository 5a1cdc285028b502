package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// Vector-valued attributes are kept as raw expressions and decoded by the
// translators, so a tuple literal like [1, 2] converts into a Go slice.

// Domain is the HCL schema of the `domain` block.
type Domain struct {
	Lo       hcl.Expression `hcl:"lo"`
	Hi       hcl.Expression `hcl:"hi"`
	Periodic hcl.Expression `hcl:"periodic,optional"`
}

// Layout is the HCL schema of a `layout "name"` block.
type Layout struct {
	Name    string         `hcl:"name,label"`
	Tile    hcl.Expression `hcl:"tile,optional"`
	Ranks   *int           `hcl:"ranks,optional"`
	From    *string        `hcl:"from,optional"`
	Coarsen *int           `hcl:"coarsen,optional"`
	Refine  *int           `hcl:"refine,optional"`
	Boxes   []*Box         `hcl:"box,block"`
}

// Box is the HCL schema of a `box` block inside a layout.
type Box struct {
	Lo   hcl.Expression `hcl:"lo"`
	Hi   hcl.Expression `hcl:"hi"`
	Proc int            `hcl:"proc"`
}

// Transfer is the HCL schema of a `transfer "name"` block.
type Transfer struct {
	Name        string         `hcl:"name,label"`
	Source      string         `hcl:"source"`
	Dest        *string        `hcl:"dest,optional"`
	Mode        *string        `hcl:"mode,optional"`
	Ghost       hcl.Expression `hcl:"ghost,optional"`
	SourceGhost hcl.Expression `hcl:"source_ghost,optional"`
	Shift       hcl.Expression `hcl:"shift,optional"`
	NComp       *int           `hcl:"ncomp,optional"`
	Iterations  *int           `hcl:"iterations,optional"`
	Split       *bool          `hcl:"split,optional"`
	Trim        *bool          `hcl:"trim,optional"`
	Coarsen     *int           `hcl:"coarsen,optional"`
}
