package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateShapeMissingField(t *testing.T) {
	spec := ValidationSpec{RequiredFields: []string{"id", "name"}}

	_, err := ValidateShape(map[string]interface{}{"id": "x"}, spec)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindResponse, rerr.Kind)
	assert.Contains(t, rerr.Message, `"name"`)
}

func TestValidateShapeNamesFirstMissingField(t *testing.T) {
	spec := ValidationSpec{RequiredFields: []string{"alpha", "beta"}}

	_, err := ValidateShape(map[string]interface{}{}, spec)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, `"alpha"`)
	assert.NotContains(t, rerr.Message, `"beta"`)
}

func TestValidateShapeMergesDefaults(t *testing.T) {
	spec := ValidationSpec{
		RequiredFields: []string{"id", "name"},
		Defaults:       map[string]interface{}{"public": false},
	}

	got, err := ValidateShape(map[string]interface{}{"id": "x", "name": "y"}, spec)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": "x", "name": "y", "public": false}, got)
}

func TestValidateShapeCallerFieldsWin(t *testing.T) {
	spec := ValidationSpec{Defaults: map[string]interface{}{"public": false, "region": "us"}}

	got, err := ValidateShape(map[string]interface{}{"public": true}, spec)
	require.NoError(t, err)
	assert.Equal(t, true, got["public"])
	assert.Equal(t, "us", got["region"])
}

func TestValidateShapeMergeIsShallow(t *testing.T) {
	spec := ValidationSpec{
		Defaults: map[string]interface{}{
			"limits": map[string]interface{}{"gpu": 1, "cpu": 4},
		},
	}

	got, err := ValidateShape(map[string]interface{}{
		"limits": map[string]interface{}{"gpu": 2},
	}, spec)
	require.NoError(t, err)
	// The caller's nested object replaces the default wholesale.
	assert.Equal(t, map[string]interface{}{"gpu": 2}, got["limits"])
}

func TestValidateShapeRejectsNonObjects(t *testing.T) {
	for _, raw := range []interface{}{nil, "text", 42.0, []interface{}{"a"}} {
		_, err := ValidateShape(raw, ValidationSpec{})
		var rerr *Error
		require.ErrorAs(t, err, &rerr, "payload %v should fail", raw)
		assert.Equal(t, KindResponse, rerr.Kind)
	}
}
