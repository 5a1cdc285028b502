package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/boxmotion/internal/ctxlog"
)

// decodeList evaluates a list-valued attribute into a Go slice. It returns a
// nil slice when the attribute was not written.
func decodeList[E any](ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext, elem cty.Type, attrName string) ([]E, error) {
	if !isExprDefined(ctx, expr, attrName) {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("attribute %q: %w", attrName, diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsListType() && !val.Type().IsTupleType() {
		return nil, fmt.Errorf("attribute %q: expected a list, got %s", attrName, val.Type().FriendlyName())
	}

	if val.Type().IsTupleType() {
		ctxlog.FromContext(ctx).Debug("Value is a tuple, converting to list before decoding to slice.", "attribute", attrName)
	}
	listVal, err := convert.Convert(val, cty.List(elem))
	if err != nil {
		return nil, fmt.Errorf("attribute %q: cannot convert to a list of %s: %w", attrName, elem.FriendlyName(), err)
	}

	out := []E{}
	if err := gocty.FromCtyValue(listVal, &out); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", attrName, err)
	}
	return out, nil
}

func decodeInts(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext, attrName string) ([]int, error) {
	return decodeList[int](ctx, expr, evalCtx, cty.Number, attrName)
}

func decodeBools(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext, attrName string) ([]bool, error) {
	return decodeList[bool](ctx, expr, evalCtx, cty.Bool, attrName)
}
