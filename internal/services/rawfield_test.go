package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/shopadmin/internal/models"
)

func TestRawFieldUnmarshalJSON(t *testing.T) {
	var body struct {
		Address RawField[models.Address] `json:"address"`
		Images  RawField[[]string]       `json:"images"`
		Price   RawField[float64]        `json:"price"`
		Stock   RawField[int]            `json:"stock"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{
		"address": {"city": "Medan"},
		"images": "[\"a.png\"]",
		"price": "12.5",
		"stock": null
	}`), &body))

	address, ok, err := body.Address.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Medan", address.City)

	images, ok, err := body.Images.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a.png"}, images)

	price, _, err := body.Price.Decode()
	require.NoError(t, err)
	require.Equal(t, 12.5, price)

	require.True(t, body.Stock.IsNull())
	_, ok, err = body.Stock.Decode()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRawFieldAbsentAndCleared(t *testing.T) {
	var body struct {
		Images RawField[[]string] `json:"images"`
		Other  RawField[[]string] `json:"other"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"images": ""}`), &body))

	require.True(t, body.Images.IsSet())
	require.True(t, body.Images.IsNull())
	require.False(t, body.Other.IsSet())
}

func TestRawFieldMismatchedShapeFailsOnDecode(t *testing.T) {
	var body struct {
		Images RawField[[]string] `json:"images"`
		Stock  RawField[int]      `json:"stock"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"images": {"a": 1}, "stock": 1.5}`), &body))

	_, _, err := body.Images.Decode()
	require.Error(t, err)
	_, _, err = body.Stock.Decode()
	require.Error(t, err)
}

func TestRawFieldUnmarshalText(t *testing.T) {
	var field RawField[float64]
	require.NoError(t, field.UnmarshalText([]byte("42")))
	value, ok, err := field.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42.0, value)

	require.NoError(t, field.UnmarshalText([]byte("  ")))
	require.True(t, field.IsNull())
}
