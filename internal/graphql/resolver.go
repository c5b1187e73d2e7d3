package graphql

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:embed schema.graphqls
var schemaSource string

// Schema is the parsed GraphQL schema served by the resolver.
var Schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL response body.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors gqlerror.List  `json:"errors,omitempty"`
}

type fieldFunc func(ctx context.Context, args map[string]any) (any, error)

// Resolver executes GraphQL operations against the shipping service.
type Resolver struct {
	Service *shipping.Service
	Logger  *otelzap.Logger

	query    map[string]fieldFunc
	mutation map[string]fieldFunc
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(svc *shipping.Service, logger *otelzap.Logger) *Resolver {
	r := &Resolver{Service: svc, Logger: logger}
	r.query = map[string]fieldFunc{
		"status":        r.status,
		"provinces":     r.provinces,
		"communes":      r.communes,
		"pickupCenters": r.pickupCenters,
		"feeQuote":      r.feeQuote,
		"shipment":      r.shipment,
		"shipments":     r.shipments,
		"tracking":      r.tracking,
		"shipmentStats": r.shipmentStats,
	}
	r.mutation = map[string]fieldFunc{
		"createShipment": r.createShipment,
		"updateShipment": r.updateShipment,
		"deleteShipment": r.deleteShipment,
	}
	return r
}

type execution struct {
	doc  *ast.QueryDocument
	vars map[string]any
}

// Execute parses, validates and runs one operation. Query fields resolve
// concurrently; mutation fields run in document order. A failing field is
// reported in Errors with a null value and does not abort its siblings.
func (r *Resolver) Execute(ctx context.Context, req Request) *Response {
	doc, errs := gqlparser.LoadQuery(Schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errs}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation %q not found", req.OperationName)}}
	}

	vars, verr := validator.VariableValues(Schema, op, req.Variables)
	if verr != nil {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("%s", verr.Error())}}
	}

	if op.Operation != ast.Query && op.Operation != ast.Mutation {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("%s operations are not supported", op.Operation)}}
	}

	e := &execution{doc: doc, vars: vars}
	fields := e.collectFields(op.SelectionSet)
	resolvers := r.query
	if op.Operation == ast.Mutation {
		resolvers = r.mutation
	}

	resp := &Response{Data: make(map[string]any, len(fields))}
	values := make([]any, len(fields))
	fieldErrs := make([]*gqlerror.Error, len(fields))

	run := func(i int, f *ast.Field) {
		values[i], fieldErrs[i] = r.resolveField(ctx, e, resolvers, f)
	}

	if op.Operation == ast.Mutation {
		for i, f := range fields {
			run(i, f)
		}
	} else {
		var g errgroup.Group
		for i, f := range fields {
			i, f := i, f
			g.Go(func() error {
				run(i, f)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, f := range fields {
		resp.Data[responseKey(f)] = values[i]
		if fieldErrs[i] != nil {
			resp.Errors = append(resp.Errors, fieldErrs[i])
		}
	}
	return resp
}

func (r *Resolver) resolveField(ctx context.Context, e *execution, resolvers map[string]fieldFunc, f *ast.Field) (any, *gqlerror.Error) {
	if f.Name == "__typename" {
		if f.ObjectDefinition != nil {
			return f.ObjectDefinition.Name, nil
		}
		return nil, nil
	}
	if strings.HasPrefix(f.Name, "__") {
		return nil, fieldError(f, fmt.Errorf("introspection is not supported"))
	}
	fn, ok := resolvers[f.Name]
	if !ok {
		return nil, fieldError(f, fmt.Errorf("field %s is not supported", f.Name))
	}

	result, err := fn(ctx, f.ArgumentMap(e.vars))
	if err != nil {
		r.Logger.Ctx(ctx).Debug("GraphQL field failed",
			zap.String("field", f.Name),
			zap.Error(err),
		)
		return nil, fieldError(f, err)
	}

	generic, err := toGeneric(result)
	if err != nil {
		return nil, fieldError(f, err)
	}
	return e.project(generic, f.SelectionSet), nil
}
