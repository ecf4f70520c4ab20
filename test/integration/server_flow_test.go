package integration

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdrlens/internal/config"
	"cdrlens/internal/server"
)

func TestServerFlow_PDFReportDownload(t *testing.T) {
	cfg := config.DefaultConfig()

	srv := server.New(server.Options{
		Orchestrator:   orchestrator(t, cfg),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		ArtifactDir:    t.TempDir(),
		DefaultFormat:  cfg.Report.Format,
	})

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "cdr_sample.csv")
	require.NoError(t, err)

	f, err := os.Open(fixture("cdr_sample.csv"))
	require.NoError(t, err)

	_, err = io.Copy(fw, f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, mw.WriteField("detector", "unusual_hours"))
	require.NoError(t, mw.WriteField("case_number", "FIR-88"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "CDR_Unusual_Hours_Analysis_Report.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}
