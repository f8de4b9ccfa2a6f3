package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.ErrInvalidParameter.New("p"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", errs.ErrConfiguration.New("freq")), http.StatusBadRequest},
		{errs.ErrDataIntegrity.New("row 1"), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestRespondFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/datasets/city/aggregate", nil)

	RespondFailure(rec, req, errs.ErrInvalidParameter.New("percentile 2 is outside [0, 1]"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "invalid_parameter", body.Kind)
	require.Contains(t, body.Message, "percentile 2")
}
