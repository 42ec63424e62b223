package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

func TestWriteError(t *testing.T) {
	mappings := []ErrorMapping{{Target: errMissing, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "thing not found"}}

	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"mapped sentinel", fmt.Errorf("lookup: %w", errMissing), http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"thing not found"}}`},
		{"app error", NewAppError("CONFLICT", "already there", http.StatusConflict, nil), http.StatusConflict, `{"error":{"code":"CONFLICT","message":"already there"}}`},
		{"invalid payload", fmt.Errorf("%w: empty body", ErrInvalidPayload), http.StatusBadRequest, `{"error":{"code":"BAD_REQUEST","message":"invalid payload: empty body"}}`},
		{"unmapped", errors.New("db password is hunter2"), http.StatusInternalServerError, `{"error":{"code":"INTERNAL","message":"internal error"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tc.err, mappings...)
			require.Equal(t, tc.status, rr.Code)
			require.JSONEq(t, tc.body, rr.Body.String())
		})
	}
}
