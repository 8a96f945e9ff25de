package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type blankError struct{}

func (blankError) Error() string { return "" }

func TestMessageOfFallsBack(t *testing.T) {
	require.Equal(t, "Failed to upload document", MessageOf(nil, "Failed to upload document"))
	require.Equal(t, "Failed to upload document", MessageOf(blankError{}, "Failed to upload document"))
	require.Equal(t, "disk full", MessageOf(fmt.Errorf("disk full"), "Failed to upload document"))
	require.Equal(t, "document not found", MessageOf(Clone(ErrNotFound, "document not found"), "x"))
}

func TestClonedErrorsMatchByCode(t *testing.T) {
	cloned := Clone(ErrTooManyFiles, "Maksimal 5 file yang diizinkan")
	wrapped := fmt.Errorf("selection: %w", cloned)
	require.True(t, errors.Is(wrapped, ErrTooManyFiles))
	require.False(t, errors.Is(wrapped, ErrValidation))
	require.Equal(t, ErrInternal.Code, FromError(errors.New("boom")).Code)
}
