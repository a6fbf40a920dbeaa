package httpservice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x1000000000000000000000000000000000000001", "from")
	require.NoError(t, err)
	require.Equal(t, "0x1000000000000000000000000000000000000001", addr.Hex())

	_, err = parseAddress("not-an-address", "from")
	require.Error(t, err)

	_, err = parseAddress("", "from")
	require.Error(t, err)

	zero, err := parseOptionalAddress("", "token")
	require.NoError(t, err)
	require.Equal(t, common.Address{}, zero)
}

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("1000", "amount")
	require.NoError(t, err)
	require.Equal(t, "1000", amount.Dec())

	_, err = parseAmount("-5", "amount")
	require.Error(t, err)

	_, err = parseAmount("abc", "amount")
	require.Error(t, err)

	none, err := parseOptionalAmount("", "value")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, vaulterrors.SAFE_NOT_FOUND.New(
		"safe 42 not found",
	).WithMetadata(vaulterrors.SafeMetadata{SafeId: 42}))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "SAFE_NOT_FOUND", body.Name)
	require.Equal(t, uint16(2), body.Code)
	require.Equal(t, "42", body.Metadata["safe_id"])
}

func TestWriteErrorUnstructured(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL_ERROR", body.Name)
	// the cause is never leaked to the client
	require.NotContains(t, body.Message, "boom")
}
