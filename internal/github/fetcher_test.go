package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const chapter = "# Physics\n\n1. A body moves with uniform acceleration from rest.\n"

type entry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int    `json:"size,omitempty"`
	SHA         string `json:"sha,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Content     string `json:"content,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
}

func newRepoServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	files := map[string]string{
		"pdfs/ch1.md":      chapter,
		"pdfs/sub/ch2.pdf": "%PDF-1.4 fake",
	}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	fileEntry := func(p string) entry {
		return entry{
			Type:        "file",
			Name:        filepath.Base(p),
			Path:        p,
			Size:        len(files[p]),
			SHA:         "sha-" + filepath.Base(p),
			DownloadURL: server.URL + "/raw/" + p,
		}
	}

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/owner/repo/contents/pdfs":
			writeJSON(w, []entry{
				fileEntry("pdfs/ch1.md"),
				{Type: "file", Name: "README.txt", Path: "pdfs/README.txt", Size: 3},
				{Type: "dir", Name: "sub", Path: "pdfs/sub"},
			})
		case "/repos/owner/repo/contents/pdfs/sub":
			writeJSON(w, []entry{fileEntry("pdfs/sub/ch2.pdf")})
		case "/repos/owner/repo/contents/pdfs/ch1.md", "/repos/owner/repo/contents/pdfs/sub/ch2.pdf":
			p := r.URL.Path[len("/repos/owner/repo/contents/"):]
			e := fileEntry(p)
			e.Content = base64.StdEncoding.EncodeToString([]byte(files[p]))
			e.Encoding = "base64"
			writeJSON(w, e)
		case "/raw/pdfs/ch1.md", "/raw/pdfs/sub/ch2.pdf":
			w.Write([]byte(files[r.URL.Path[len("/raw/"):]]))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, server *httptest.Server) *Fetcher {
	t.Helper()
	client, err := NewClient(context.Background(), "")
	require.NoError(t, err)
	client, err = client.WithBaseURL(server.URL)
	require.NoError(t, err)
	f := NewFetcher(client, "owner", "repo", "", nil)
	f.SetRequestRate(rate.Inf, 1)
	return f
}

func TestListMaterials(t *testing.T) {
	f := newTestFetcher(t, newRepoServer(t))

	materials, err := f.ListMaterials(context.Background())
	require.NoError(t, err)
	require.Len(t, materials, 2)
	assert.Equal(t, "ch1.md", materials[0].Path)
	assert.Equal(t, len(chapter), materials[0].Size)
	assert.Equal(t, "sub/ch2.pdf", materials[1].Path)
}

func TestSync(t *testing.T) {
	f := newTestFetcher(t, newRepoServer(t))
	dest := filepath.Join(t.TempDir(), "pdfs")

	res, err := f.Sync(context.Background(), dest)
	require.NoError(t, err)
	assert.Len(t, res.Downloaded, 2)
	assert.Empty(t, res.Failed)

	data, err := os.ReadFile(filepath.Join(dest, "ch1.md"))
	require.NoError(t, err)
	assert.Equal(t, chapter, string(data))
	assert.FileExists(t, filepath.Join(dest, "ch2.pdf"))

	res, err = f.Sync(context.Background(), dest)
	require.NoError(t, err)
	assert.Empty(t, res.Downloaded)
	assert.Equal(t, []string{"ch1.md", "sub/ch2.pdf"}, res.Skipped)
}

func TestListMaterials_MissingPath(t *testing.T) {
	server := newRepoServer(t)
	client, err := NewClient(context.Background(), "token")
	require.NoError(t, err)
	client, err = client.WithBaseURL(server.URL)
	require.NoError(t, err)

	_, err = NewFetcher(client, "owner", "repo", "missing", nil).ListMaterials(context.Background())
	assert.Error(t, err)
}

func TestListMaterials_Throttled(t *testing.T) {
	f := newTestFetcher(t, newRepoServer(t))
	f.SetRequestRate(1, 0)

	_, err := f.ListMaterials(context.Background())
	assert.Error(t, err)
}
