package graphql

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// decodeArg converts a coerced argument value into T through its JSON form,
// so input objects land on the same struct tags the REST handlers use.
func decodeArg[T any](args map[string]any, name string) (T, error) {
	var out T
	raw, ok := args[name]
	if !ok || raw == nil {
		return out, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("argument %s: %w", name, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("argument %s: %w", name, err)
	}
	return out, nil
}

// toGeneric turns a resolver result into maps and slices keyed by JSON name.
func toGeneric(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// project keeps only the selected fields of v, renaming them to their
// aliases.
func (e *execution) project(v any, sel ast.SelectionSet) any {
	if len(sel) == 0 || v == nil {
		return v
	}
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = e.project(item, sel)
		}
		return out
	case map[string]any:
		out := make(map[string]any)
		for _, f := range e.collectFields(sel) {
			key := responseKey(f)
			if f.Name == "__typename" {
				if f.ObjectDefinition != nil {
					out[key] = f.ObjectDefinition.Name
				}
				continue
			}
			out[key] = e.project(val[f.Name], f.SelectionSet)
		}
		return out
	default:
		return v
	}
}

// collectFields flattens fragments and drops fields excluded by @skip or
// @include.
func (e *execution) collectFields(sel ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			if e.included(s.Directives) {
				fields = append(fields, s)
			}
		case *ast.InlineFragment:
			if e.included(s.Directives) {
				fields = append(fields, e.collectFields(s.SelectionSet)...)
			}
		case *ast.FragmentSpread:
			if s.Definition != nil && e.included(s.Directives) {
				fields = append(fields, e.collectFields(s.Definition.SelectionSet)...)
			}
		}
	}
	return fields
}

func (e *execution) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(e.vars)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(e.vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// fieldError converts a resolver failure into a GraphQL error carrying the
// shipping error kind in its extensions.
func fieldError(f *ast.Field, err error) *gqlerror.Error {
	gerr := &gqlerror.Error{
		Err:     err,
		Message: err.Error(),
		Path:    ast.Path{ast.PathName(responseKey(f))},
	}
	if f.Position != nil {
		gerr.Locations = []gqlerror.Location{{Line: f.Position.Line, Column: f.Position.Column}}
	}

	var se *shipping.Error
	if errors.As(err, &se) {
		gerr.Message = se.Message
		ext := map[string]any{
			"kind":        string(se.Kind),
			"userMessage": shipping.UserMessage(se.Kind),
		}
		if se.Field != "" {
			ext["field"] = se.Field
		}
		if se.StatusCode != 0 {
			ext["carrierStatus"] = se.StatusCode
		}
		gerr.Extensions = ext
	}
	return gerr
}
