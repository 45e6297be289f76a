package apikey_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/internal/apikey"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tenantID := uuid.New()
	raw, key, err := apikey.Generate(tenantID, " ci ", []string{models.ScopePredict})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, apikey.Marker))
	assert.Equal(t, raw[:apikey.PrefixLen], key.KeyPrefix)
	assert.Equal(t, "ci", key.Name)
	assert.Equal(t, tenantID, key.TenantID)
	assert.NotContains(t, key.KeyHash, raw)
	assert.True(t, apikey.Matches(key, raw))
	assert.False(t, apikey.Matches(key, raw+"x"))
}

func TestGenerate_Unique(t *testing.T) {
	a, _, err := apikey.Generate(uuid.New(), "a", []string{models.ScopeAdmin})
	require.NoError(t, err)
	b, _, err := apikey.Generate(uuid.New(), "b", []string{models.ScopeAdmin})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerate_Invalid(t *testing.T) {
	_, _, err := apikey.Generate(uuid.New(), "", []string{models.ScopeAdmin})
	assert.Error(t, err)

	_, _, err = apikey.Generate(uuid.New(), "x", nil)
	assert.Error(t, err)

	_, _, err = apikey.Generate(uuid.New(), "x", []string{"write"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write")
}
