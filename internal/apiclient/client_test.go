package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadExport(t *testing.T) {
	var got model.QueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/solana-validator", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="solana_validator_data_2025-10-01_to_2025-10-03.csv"`)
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	req := model.QueryRequest{Pubkey1: "p1", Pubkey2: "p2", StartDate: "2025-10-01", EndDate: "2025-10-03"}
	dl, err := New(srv.URL+"/", logger.Nop()).DownloadExport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req, got)
	assert.Equal(t, "solana_validator_data_2025-10-01_to_2025-10-03.csv", dl.Filename)
	assert.Equal(t, "a,b\n1,2\n", string(dl.CSV))
}

func TestDownloadExportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error","message":"BigQuery query failed: boom"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, logger.Nop()).DownloadExport(context.Background(), model.QueryRequest{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Internal server error", apiErr.Message)
	assert.Equal(t, "BigQuery query failed: boom", apiErr.Detail)
}

func TestFees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chainId":"1","baseFee":30,"priorityFee":2,"maxFee":32,"blockNumber":5}`))
	}))
	defer srv.Close()

	snap, err := New(srv.URL, logger.Nop()).Fees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", snap.ChainID)
	assert.Equal(t, int64(32), snap.MaxFee.Int64())
}

func TestDownloadExportStripsDirectories(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		want        string
	}{
		{"parent traversal", `attachment; filename="../../tmp/pwned.csv"`, "pwned.csv"},
		{"absolute path", `attachment; filename="/etc/cron.d/job.csv"`, "job.csv"},
		{"backslashes", `attachment; filename="..\\..\\evil.csv"`, "evil.csv"},
		{"dot dot only", `attachment; filename=".."`, "solana_validator_data_2025-10-01_to_2025-10-03.csv"},
		{"missing header", "", "solana_validator_data_2025-10-01_to_2025-10-03.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.disposition != "" {
					w.Header().Set("Content-Disposition", tt.disposition)
				}
				_, _ = w.Write([]byte("a\n"))
			}))
			defer srv.Close()

			req := model.QueryRequest{StartDate: "2025-10-01", EndDate: "2025-10-03"}
			dl, err := New(srv.URL, logger.Nop()).DownloadExport(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dl.Filename)
		})
	}
}
