// Package hcl_adapter loads scenario files written in HCL into the
// format-agnostic config model.
package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/boxmotion/internal/config"
	"github.com/vk/boxmotion/internal/ctxlog"
	"github.com/vk/boxmotion/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	ranks int
}

// NewLoader creates a loader whose expressions see the number of ranks as
// the variable `ranks`.
func NewLoader(ranks int) *Loader {
	return &Loader{ranks: ranks}
}

// fileRoot is a struct used to decode all possible top-level blocks from any
// file. Anything else in a file is an error.
type fileRoot struct {
	Domains   []*Domain   `hcl:"domain,block"`
	Layouts   []*Layout   `hcl:"layout,block"`
	Transfers []*Transfer `hcl:"transfer,block"`
}

func (l *Loader) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"ranks": cty.NumberIntVal(int64(l.ranks)),
		},
	}
}

// Load parses every .hcl file under paths, merges their blocks and returns
// the validated model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	evalCtx := l.evalContext()
	model := &config.Model{}

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, d := range root.Domains {
			if model.Domain != nil {
				return nil, fmt.Errorf("%s: domain defined more than once", file)
			}
			dom, err := l.translateDomain(ctx, d, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Domain = dom
		}
		for _, lb := range root.Layouts {
			lay, err := l.translateLayout(ctx, lb, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Layouts = append(model.Layouts, lay)
		}
		for _, tb := range root.Transfers {
			tr, err := l.translateTransfer(ctx, tb, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Transfers = append(model.Transfers, tr)
		}
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	logger.Debug("HCL loading complete.", "layouts", len(model.Layouts), "transfers", len(model.Transfers))
	return model, nil
}

// findAllHCLFiles walks all given paths and returns a flat, sorted list of
// all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("scenario path %s does not exist", path)
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		allFiles = append(allFiles, files...)
	}
	slices.Sort(allFiles)
	return slices.Compact(allFiles), nil
}
