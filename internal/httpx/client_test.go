package httpx

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/herald/internal/retry"
)

func TestClient_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/content", r.URL.Path)
		assert.Equal(t, "DOC", r.URL.Query().Get("spaceKey"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"title":"Report"}`, string(body))
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithAuth(BasicAuth{User: "bot@example.com", Token: "secret"}))
	var out struct {
		ID string `json:"id"`
	}
	err := c.JSON(context.Background(), http.MethodPost, "/rest/api/content",
		url.Values{"spaceKey": {"DOC"}}, map[string]string{"title": "Report"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := New(srv.URL, WithAuth(BearerToken("tok")))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "status"})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
	assert.Contains(t, se.Error(), "upstream down")
	assert.True(t, retry.IsTransient(err))
	assert.Equal(t, 500, retry.StatusCode(err))
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	BearerToken("abc").Apply(req)
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	BearerToken("").Apply(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_results_v3.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))

	body, contentType, err := Multipart(map[string]string{"projectKey": "QA"},
		FilePart{Field: "file", Path: path, ContentType: ContentTypeFor(path)})
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(strings.NewReader(body.String()), params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"QA"}, form.Value["projectKey"])
	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "test_results_v3.zip", form.File["file"][0].Filename)
	assert.Equal(t, "application/zip", form.File["file"][0].Header.Get("Content-Type"))
}

func TestMultipart_MissingFile(t *testing.T) {
	_, _, err := Multipart(nil, FilePart{Field: "file", Path: filepath.Join(t.TempDir(), "nope.pdf")})
	require.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFor("a/b/report_v1.PDF"))
	assert.Equal(t, "text/html", ContentTypeFor("report_v1.html"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("blob"))
}

func TestClient_DefaultHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-check", r.Header.Get("X-Atlassian-Token"))
		assert.Equal(t, "herald-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Request"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, WithHeader("X-Atlassian-Token", "no-check"), WithUserAgent("herald-test"))
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodDelete,
		Path:   "/rest/api/3/attachment/1",
		Header: http.Header{"X-Request": {"yes"}},
	})
	require.NoError(t, err)
}
