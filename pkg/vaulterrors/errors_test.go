package vaulterrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := vaulterrors.SAFE_NOT_FOUND.New("safe %d not found", 42)
	require.EqualError(t, err, "SAFE_NOT_FOUND (2): safe 42 not found")
	require.Equal(t, uint16(2), err.Code())
	require.Equal(t, "SAFE_NOT_FOUND", err.CodeName())
	require.Equal(t, http.StatusNotFound, err.HTTPStatus())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := vaulterrors.INTERNAL_ERROR.Wrap(cause)
	require.EqualError(t, err, "INTERNAL_ERROR (0): disk full")
	require.Equal(t, http.StatusInternalServerError, err.HTTPStatus())

	var structuredErr vaulterrors.Error
	require.ErrorAs(t, error(err), &structuredErr)
	require.Equal(t, "INTERNAL_ERROR", structuredErr.CodeName())
}

func TestMetadata(t *testing.T) {
	err := vaulterrors.UNAUTHORIZED.New("nope").WithMetadata(vaulterrors.CallerMetadata{
		SafeId: 7,
		Caller: "0x1000000000000000000000000000000000000001",
	})
	metadata := err.Metadata()
	require.Equal(t, "7", metadata["safe_id"])
	require.Equal(t, "0x1000000000000000000000000000000000000001", metadata["caller"])

	// without metadata the map is empty, never nil
	metadata = vaulterrors.SERVICE_PAUSED.New("paused").Metadata()
	require.NotNil(t, metadata)
}

func TestErrorAsThroughWrapping(t *testing.T) {
	inner := vaulterrors.NOT_EXPIRED.New("too early")
	wrapped := fmt.Errorf("claim failed: %w", inner)

	var structuredErr vaulterrors.Error
	require.True(t, errors.As(wrapped, &structuredErr))
	require.Equal(t, "NOT_EXPIRED", structuredErr.CodeName())
}
