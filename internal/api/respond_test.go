package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

func TestClassify(t *testing.T) {
	unreachable := func() error {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client := subsentryclient.NewClient(server.URL + "/api")
		_, err := client.ReportTemplates(context.Background())
		require.Error(t, err)
		return err
	}()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unreachable backend", unreachable, http.StatusBadGateway, "Unable to reach the SubSentry backend. Please try again."},
		{"wrapped unreachable backend", fmt.Errorf("load view: %w", unreachable), http.StatusBadGateway, "Unable to reach the SubSentry backend. Please try again."},
		{"backend reply", &subsentryclient.APIError{Status: http.StatusServiceUnavailable, Message: "database unavailable"}, http.StatusBadGateway, "database unavailable"},
		{"expired session", subsentryclient.ErrUnauthorized, http.StatusUnauthorized, subsentryclient.ErrUnauthorized.Error()},
		{"unknown view", app.ErrUnknownView, http.StatusNotFound, app.ErrUnknownView.Error()},
		{"missing user", domain.ErrMissingUserID, http.StatusBadRequest, domain.ErrMissingUserID.Error()},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestContentDisposition_QuotesFilename(t *testing.T) {
	header := contentDisposition(`report "final"; v2.csv`)
	disposition, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `report "final"; v2.csv`, params["filename"])

	rec := httptest.NewRecorder()
	writeBlob(rec, &subsentryclient.Blob{Filename: "bad\"\r\nX-Injected: 1.csv", Data: []byte("a,b")})
	assert.Empty(t, rec.Header().Get("X-Injected"))
	_, params, err = mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "bad\"\r\nX-Injected: 1.csv", params["filename"])

	assert.Equal(t, "attachment", contentDisposition(""))
}
