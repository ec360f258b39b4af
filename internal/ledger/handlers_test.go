package ledger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medichain/telemed/pkg/types"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	svc, _ := newTestService(t)
	router := mux.NewRouter()
	NewHandlers(svc, testLogger()).RegisterRoutes(router)
	return router
}

func doRequest(router *mux.Router, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBuildRecordEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/records", "user-1", buildRecordRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     map[string]interface{}{"condition": "Influenza"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var record types.IntegrityRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, types.StatusConfirmed, record.Status)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, record.ChainReference)
}

func TestBuildRecordEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/records", "", buildRecordRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     map[string]interface{}{"condition": "Influenza"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/records", "user-1", buildRecordRequest{
		SubjectType: types.SubjectDiagnosis,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/records", "user-1", buildRecordRequest{
		SubjectType: "potion",
		Payload:     map[string]interface{}{"x": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpointRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	payload := map[string]interface{}{"condition": "Influenza", "confidence": 40.0}

	rec := doRequest(router, http.MethodPost, "/records", "user-1", buildRecordRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     payload,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var record types.IntegrityRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))

	rec = doRequest(router, http.MethodPost, "/verify", "user-1", verifyRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     payload,
		RecordID:    record.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome types.VerificationOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Verified)

	// A tampered payload still answers 200, with verified=false.
	rec = doRequest(router, http.MethodPost, "/verify", "user-1", verifyRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     map[string]interface{}{"condition": "Common Cold"},
		RecordID:    record.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.False(t, outcome.Verified)
	assert.Equal(t, "hash mismatch", outcome.MismatchReason)
}

func TestVerifyEndpointMissingRecord(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/verify", "user-1", verifyRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     map[string]interface{}{"condition": "Influenza"},
		RecordID:    "no-such-record",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRecordEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/records/no-such-record", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/records", "user-1", buildRecordRequest{
		SubjectType: types.SubjectDiagnosis,
		Payload:     map[string]interface{}{"condition": "Influenza"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var record types.IntegrityRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))

	rec = doRequest(router, http.MethodGet, "/transactions/"+record.ChainReference, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status types.TransactionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "confirmed", status.Status)
	assert.Equal(t, record.ChainReference, status.TransactionHash)
}
