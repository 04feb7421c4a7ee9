package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	t.Parallel()

	p, err := New(context.Background(), false, nil, "test")
	require.NoError(t, err)

	_, span := p.Tracer("executor").Start(context.Background(), "execute")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabledProviderExports(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := New(context.Background(), true, &buf, "test")
	require.NoError(t, err)

	_, span := p.Tracer("executor").Start(context.Background(), "execute_signal")
	assert.True(t, span.IsRecording())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "execute_signal")
}
