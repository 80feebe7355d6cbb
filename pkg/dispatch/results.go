package dispatch

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vango-dev/eventwire/pkg/route"
)

// resultFunctions are the functions available to result expressions.
var resultFunctions = map[string]function.Function{
	"jsonencode": stdlib.JSONEncodeFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"upper":      stdlib.UpperFunc,
	"lower":      stdlib.LowerFunc,
	"trimspace":  stdlib.TrimSpaceFunc,
	"length":     stdlib.LengthFunc,
	"format":     stdlib.FormatFunc,
	"join":       stdlib.JoinFunc,
	"split":      stdlib.SplitFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"lookup":     stdlib.LookupFunc,
	"keys":       stdlib.KeysFunc,
	"values":     stdlib.ValuesFunc,
	"merge":      stdlib.MergeFunc,
	"element":    stdlib.ElementFunc,
	"contains":   stdlib.ContainsFunc,
	"int":        stdlib.IntFunc,
}

// evalResults evaluates each expression in exprs against the response and
// request payload and returns the values keyed by local name.
func evalResults(exprs map[string]string, resp *route.Response, req Request) (map[string]any, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	respVal, err := toCty(responseValue(resp))
	if err != nil {
		return nil, fmt.Errorf("%w: response: %w", ErrResultExpression, err)
	}
	var reqData any = map[string]any{}
	if req != nil && req.All() != nil {
		reqData = req.All().Map()
	}
	reqVal, err := toCty(reqData)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %w", ErrResultExpression, err)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"response": respVal,
			"request":  reqVal,
		},
		Functions: resultFunctions,
	}

	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(exprs))
	for _, name := range names {
		src := exprs[name]
		expr, diags := hclsyntax.ParseExpression([]byte(src), "results."+name, hcl.Pos{Line: 1, Column: 1, Byte: 0})
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: %s = %s: %s", ErrResultExpression, name, src, diags.Error())
		}
		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: %s = %s: %s", ErrResultExpression, name, src, diags.Error())
		}
		v, err := fromCty(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrResultExpression, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// responseValue is the view of a response that expressions see.
func responseValue(resp *route.Response) map[string]any {
	if resp == nil {
		return map[string]any{}
	}
	return map[string]any{
		"data":       resp.Data,
		"status":     resp.Status,
		"statusText": resp.StatusText,
		"headers":    flattenHeaders(resp.Headers),
		"success":    resp.Success,
		"url":        resp.URL,
	}
}

// flattenHeaders keys headers by lower-cased name with their first value.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[strings.ToLower(k)] = vs[0]
		}
	}
	return out
}

// toCty converts a JSON-compatible Go value to a cty value.
func toCty(v any) (cty.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(b)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(b, ty)
}

// fromCty converts a cty value to a Go value. Whole numbers become int64,
// other numbers float64.
func fromCty(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == big.Exact {
					return i, nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			gv, err := fromCty(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = gv
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := []any{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			gv, err := fromCty(v)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty type: %s", ty.FriendlyName())
}
