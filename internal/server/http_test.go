package server

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	bizErrors "xinyuan_tech/checkout-service/internal/errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorStatus(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{code: 404, want: stdhttp.StatusNotFound},
		{code: bizErrors.ErrCodeLedgerNotFound, want: stdhttp.StatusNotFound},
		{code: bizErrors.ErrCodeLedgerBusy, want: stdhttp.StatusConflict},
		{code: bizErrors.ErrCodeAuthorizationRejected, want: stdhttp.StatusConflict},
		{code: bizErrors.ErrCodeProviderUnavailable, want: stdhttp.StatusBadGateway},
		{code: bizErrors.ErrCodeLedgerCreateFailed, want: stdhttp.StatusInternalServerError},
		{code: 130001, want: stdhttp.StatusBadRequest},
		{code: 999999, want: stdhttp.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapErrorStatus(tt.code), "code %d", tt.code)
	}
}

func TestCustomErrorEncoder(t *testing.T) {
	err := kerrors.New(bizErrors.ErrCodeAuthorizationRejected, "AUTHORIZATION_REJECTED", "authorization rejected").
		WithMetadata(map[string]string{"reason": "The currency is mismatched"})
	w := httptest.NewRecorder()

	customErrorEncoder(w, httptest.NewRequest(stdhttp.MethodGet, "/v1/checkouts/return?token=PAY-1", nil), err)

	assert.Equal(t, stdhttp.StatusConflict, w.Code)
	var body struct {
		Code     int               `json:"code"`
		Reason   string            `json:"reason"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, bizErrors.ErrCodeAuthorizationRejected, body.Code)
	assert.Equal(t, "The currency is mismatched", body.Metadata["reason"])
}
