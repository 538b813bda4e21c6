package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checklist/apierr"
	"checklist/report"
	"checklist/templatesheet"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The handlers below are only exercised on paths that fail before the
// store is touched, so a nil *database.DB is safe.

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.GET("/health", HealthCheck)
	r.GET("/types/:id", GetType(nil))
	r.GET("/types/:id/download-template", DownloadTemplate)
	r.POST("/types/:id/upload-xlsx", UploadTemplate(nil, 1<<20))
	r.POST("/projects/import-json", ImportArchive(nil, 1<<20))
	r.GET("/projects/:id/export-xlsx", ExportXLSX(nil))
	r.GET("/answers", ListAnswers(nil))
	r.POST("/answers/batch", SaveAnswers(nil))
	r.GET("/serial-numbers/:id", GetSerialNumber(nil))
	r.PUT("/settings/:key", PutSetting(nil))
	r.POST("/users", CreateUser(nil))
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) apierr.Envelope {
	t.Helper()
	var env apierr.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func multipartFile(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	w := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDownloadTemplate(t *testing.T) {
	w := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/types/1/download-template", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "checklist_template.xlsx")

	rows, err := templatesheet.Parse(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestInvalidPathParams(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name string
		path string
	}{
		{"non-numeric type id", "/types/abc"},
		{"zero type id", "/types/0"},
		{"malformed serial number id", "/serial-numbers/not-a-uuid"},
		{"malformed report type filter", "/projects/P1/export-xlsx?type_id=x"},
		{"malformed serial number filter", "/answers?serial_number=123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apierr.CodeValidation, envelope(t, w).Error.Code)
		})
	}
}

func TestUploadTemplate_Rejects(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantMsg  string
	}{
		{"missing file", "", nil, "no file uploaded"},
		{"wrong extension", "template.csv", []byte("segment,question"), "not an .xlsx workbook"},
		{"not a workbook", "template.xlsx", []byte("plain text"), "not a readable XLSX workbook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartFile(t, "file", tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/types/1/upload-xlsx", body)
			req.Header.Set("Content-Type", contentType)

			w := serve(r, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, envelope(t, w).Error.Message, tt.wantMsg)
		})
	}
}

func TestImportArchive_RejectsBeforeWriting(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", "", "archive is empty"},
		{"not json", "{not json", "not valid JSON"},
		{"future major version", `{"meta":{"version":"2.0.0"},"project":{"id":"P1"}}`, "unsupported archive version"},
		{"missing project id", `{"meta":{"version":"1.0.0"},"project":{}}`, "project id is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/projects/import-json", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := serve(r, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, envelope(t, w).Error.Message, tt.wantMsg)
		})
	}
}

func TestImportArchive_MultipartWithoutFile(t *testing.T) {
	body, contentType := multipartFile(t, "file", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/projects/import-json", body)
	req.Header.Set("Content-Type", contentType)

	w := serve(newTestRouter(), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, envelope(t, w).Error.Message, "no file uploaded")
}

func TestImportArchive_MultipartFileIsDecoded(t *testing.T) {
	body, contentType := multipartFile(t, "file", "archive.json", []byte(`{"meta":{"version":"0.9"}}`))
	req := httptest.NewRequest(http.MethodPost, "/projects/import-json", body)
	req.Header.Set("Content-Type", contentType)

	w := serve(newTestRouter(), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, envelope(t, w).Error.Message, "unsupported archive version")
}

func TestSaveAnswers_Rejects(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"object instead of array", `{"question_id": 1}`, "JSON array"},
		{"empty array", `[]`, "no answers given"},
		{"missing question", `[{"serial_number_id":"6f1c7a52-4d1e-4a3b-9a57-0d8b9f7c1e11","value":"x"}]`, "answer 0:"},
		{
			"second entry without serial number",
			`[{"question_id":1,"serial_number_id":"6f1c7a52-4d1e-4a3b-9a57-0d8b9f7c1e11","value":"x"},{"question_id":2,"value":"y"}]`,
			"answer 1:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/answers/batch", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := serve(r, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, envelope(t, w).Error.Message, tt.wantMsg)
		})
	}
}

func TestPutSetting_RejectsLongKey(t *testing.T) {
	key := strings.Repeat("k", maxSettingKeyLen+1)
	req := httptest.NewRequest(http.MethodPut, "/settings/"+key, strings.NewReader(`{"value": 1}`))
	req.Header.Set("Content-Type", "application/json")

	w := serve(newTestRouter(), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUser_SuperuserGrantNeedsSuperuser(t *testing.T) {
	body := `{"username":"1001","password":"secret-pass","is_superuser":true}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := serve(newTestRouter(), req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apierr.CodeForbidden, envelope(t, w).Error.Code)
}
