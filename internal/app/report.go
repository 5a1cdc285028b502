package app

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Report is the outcome of one scenario run.
type Report struct {
	Scenario        string            `yaml:"scenario" json:"scenario"`
	Ranks           int               `yaml:"ranks" json:"ranks"`
	Workers         int               `yaml:"workers" json:"workers"`
	Transfers       []*TransferReport `yaml:"transfers" json:"transfers"`
	MismatchedCells int               `yaml:"mismatchedCells" json:"mismatchedCells"`
}

// TransferReport sums what every rank saw while running one transfer. Item
// and cell counts are totals over ranks, so outgoing and incoming agree.
type TransferReport struct {
	Name       string `yaml:"name" json:"name"`
	Mode       string `yaml:"mode" json:"mode"`
	Source     string `yaml:"source" json:"source"`
	Dest       string `yaml:"dest" json:"dest"`
	Ranks      int    `yaml:"ranks" json:"ranks"`
	Iterations int    `yaml:"iterations" json:"iterations"`
	Split      bool   `yaml:"split,omitempty" json:"split,omitempty"`
	Trim       bool   `yaml:"trim,omitempty" json:"trim,omitempty"`
	Coarsen    int    `yaml:"coarsen,omitempty" json:"coarsen,omitempty"`

	LocalItems    int `yaml:"localItems" json:"localItems"`
	OutgoingItems int `yaml:"outgoingItems" json:"outgoingItems"`
	IncomingItems int `yaml:"incomingItems" json:"incomingItems"`
	LocalCells    int `yaml:"localCells" json:"localCells"`
	IncomingCells int `yaml:"incomingCells" json:"incomingCells"`

	Messages int64  `yaml:"messages" json:"messages"`
	Bytes    int64  `yaml:"bytes" json:"bytes"`
	Elapsed  string `yaml:"elapsed" json:"elapsed"`

	CheckedCells    int    `yaml:"checkedCells" json:"checkedCells"`
	MismatchedCells int    `yaml:"mismatchedCells" json:"mismatchedCells"`
	FirstMismatch   string `yaml:"firstMismatch,omitempty" json:"firstMismatch,omitempty"`
}

func newTransferReport(tp *transferPlan, ranks int) *TransferReport {
	return &TransferReport{
		Name:       tp.spec.Name,
		Mode:       string(tp.spec.Mode),
		Source:     tp.spec.Source,
		Dest:       tp.spec.Dest,
		Ranks:      ranks,
		Iterations: tp.spec.Iterations,
		Split:      tp.spec.Split,
		Trim:       tp.spec.Trim,
		Coarsen:    tp.spec.Coarsen,
	}
}

func (r *TransferReport) add(res *rankResult) {
	r.LocalItems += res.stats.Local
	r.OutgoingItems += res.stats.Outgoing
	r.IncomingItems += res.stats.Incoming
	r.LocalCells += res.stats.LocalCells
	r.IncomingCells += res.stats.IncomingCells
	r.CheckedCells += res.checked
	r.MismatchedCells += res.mismatched
	if r.FirstMismatch == "" {
		r.FirstMismatch = res.firstBad
	}
}

func (r *Report) add(t *TransferReport) {
	r.Transfers = append(r.Transfers, t)
	r.MismatchedCells += t.MismatchedCells
}

// Write renders the report as yaml, json or text.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "text":
		return r.writeText(w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	fmt.Fprintf(w, "scenario %s on %d ranks, %d workers\n", r.Scenario, r.Ranks, r.Workers)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSFER\tMODE\tLOCAL\tOUT\tIN\tMESSAGES\tBYTES\tCHECKED\tBAD\tELAPSED")
	for _, t := range r.Transfers {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			t.Name, t.Mode, t.LocalItems, t.OutgoingItems, t.IncomingItems,
			t.Messages, t.Bytes, t.CheckedCells, t.MismatchedCells, t.Elapsed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "mismatched cells: %d\n", r.MismatchedCells)
	return err
}
