package graphql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

func TestDecodeArg(t *testing.T) {
	args := map[string]any{
		"provinceId": int64(16),
		"input": map[string]any{
			"fromProvinceId": float64(5),
			"toProvinceId":   int64(16),
			"weight":         2.5,
		},
	}

	id, err := decodeArg[int](args, "provinceId")
	require.NoError(t, err)
	assert.Equal(t, 16, id)

	q, err := decodeArg[shipping.QuoteRequest](args, "input")
	require.NoError(t, err)
	assert.Equal(t, 5, q.FromProvinceID)
	assert.Equal(t, 16, q.ToProvinceID)
	assert.Equal(t, 2.5, q.Weight)

	missing, err := decodeArg[shipping.ShipmentFilter](args, "filter")
	require.NoError(t, err)
	assert.Equal(t, shipping.ShipmentFilter{}, missing)

	_, err = decodeArg[int](map[string]any{"provinceId": "x"}, "provinceId")
	assert.Error(t, err)
}

func TestProject(t *testing.T) {
	doc, errs := gqlparser.LoadQuery(Schema, `{ provinces { key: id name } }`)
	require.Empty(t, errs)
	field := doc.Operations[0].SelectionSet[0].(*ast.Field)

	e := &execution{doc: doc}
	value, err := toGeneric([]shipping.Province{{ID: 16, Name: "Alger", Zone: "1", IsDeliverable: true}})
	require.NoError(t, err)

	got := e.project(value, field.SelectionSet)
	assert.Equal(t, []any{map[string]any{"key": float64(16), "name": "Alger"}}, got)
}

func TestFieldError(t *testing.T) {
	f := &ast.Field{Name: "createShipment", Alias: "create"}

	err := shipping.NewError(shipping.KindValidation, "must be a valid Algerian phone number").
		WithField("contactPhone").
		WithStatusCode(400)
	gerr := fieldError(f, err)

	assert.Equal(t, "must be a valid Algerian phone number", gerr.Message)
	assert.Equal(t, "create", gerr.Path.String())
	assert.Equal(t, "validation", gerr.Extensions["kind"])
	assert.Equal(t, "contactPhone", gerr.Extensions["field"])
	assert.Equal(t, 400, gerr.Extensions["carrierStatus"])

	plain := fieldError(&ast.Field{Name: "status"}, errors.New("boom"))
	assert.Equal(t, "boom", plain.Message)
	assert.Nil(t, plain.Extensions)
}
