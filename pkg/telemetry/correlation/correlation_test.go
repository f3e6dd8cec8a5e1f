package correlation

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDGeneratesULID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, cid)
	_, err := ulid.Parse(cid)
	assert.NoError(t, err)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", cid)
}
