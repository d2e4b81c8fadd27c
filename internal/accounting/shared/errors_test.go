package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapInfraPassesDomainErrors(t *testing.T) {
	err := fmt.Errorf("post: %w", ErrUnbalancedEntry)
	require.Same(t, err, WrapInfra("post", err))
	require.NoError(t, WrapInfra("post", nil))
}

func TestWrapInfraWrapsInfrastructureErrors(t *testing.T) {
	err := WrapInfra("post document", context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrPostingFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var failed *PostingFailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, "post document", failed.Op)
	require.Same(t, err, WrapInfra("again", err))
}
