package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clepfinder/backend/internal/models"
)

func TestClientUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/colleges/osu", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.NewSuccessResponse(models.College{
			ID: "osu", Name: "Ohio State University", State: "OH",
		}))
	}))
	defer srv.Close()

	api := New(srv.URL, "token-123")
	college, err := api.GetCollege(context.Background(), "osu")
	require.NoError(t, err)
	assert.Equal(t, "Ohio State University", college.Name)
}

func TestClientSendsBodyAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/colleges":
			var req models.CreateCollegeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "osu", req.ID)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.NewSuccessResponse(models.College{ID: req.ID, Name: req.Name}))
		case r.Method == http.MethodGet && r.URL.Path == "/api/colleges/osu/exams/biology/flags":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			json.NewEncoder(w).Encode(models.NewSuccessResponse([]models.Flag{{ID: "f1", Reason: "stale"}}))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	api := New(srv.URL, "")
	college, err := api.CreateCollege(context.Background(), &models.CreateCollegeRequest{ID: "osu", Name: "Ohio State University"})
	require.NoError(t, err)
	assert.Equal(t, "osu", college.ID)

	flags, err := api.ListFlags(context.Background(), "osu", "biology", 5)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "stale", flags[0].Reason)
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(models.NewErrorResponse("College id already exists"))
	}))
	defer srv.Close()

	api := New(srv.URL, "")
	_, err := api.CreateCollege(context.Background(), &models.CreateCollegeRequest{ID: "osu", Name: "Ohio State University"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "College id already exists", apiErr.Message)
}

func TestClientSurfacesValidationFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.NewValidationErrorResponse(map[string]string{
			"reason": "Flag reason is required",
		}))
	}))
	defer srv.Close()

	api := New(srv.URL, "")
	_, err := api.SubmitFlag(context.Background(), "osu", "biology", &models.CreateFlagRequest{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Contains(t, apiErr.Fields, "reason")
}

func TestFormatCharge(t *testing.T) {
	assert.Equal(t, "$25.00", FormatCharge(2500))
	assert.Equal(t, "$0.05", FormatCharge(5))
	assert.Equal(t, "$3.50", FormatCharge(350))
	assert.Equal(t, "$0.00", FormatCharge(0))
	assert.Equal(t, "$0.00", FormatCharge(-100))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "—", FormatDate(nil))
	assert.Equal(t, "—", FormatDate(&time.Time{}))

	ts := time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "3/7/2025", FormatDate(&ts))
}
