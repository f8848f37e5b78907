package source

import (
	"context"
	"errors"
	"growthwatch/internal/telemetry"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const flightPage = `<!doctype html><html><body>
<main>Leaderboard</main>
<script>self.__next_f.push([1,"{\"person\":{\"fullName\":\"Liv Ho"])</script>
<script>self.__next_f.push([1,"lm\"},\"growth\":12}"])</script>
<script id="__NEXT_DATA__" type="application/json">{"fullName":"Kai Berg","growth":-3}</script>
</body></html>`

func origins(blobs []Blob) []string {
	out := []string{}
	for _, b := range blobs {
		out = append(out, b.Origin)
	}
	return out
}

func TestSplitHtml(t *testing.T) {
	blobs := SplitHtml("page", flightPage)
	require.Equal(t, []string{"page", "page#flight", "page#next-data"}, origins(blobs))
	require.Equal(t, flightPage, blobs[0].Text)
	require.Equal(t, `{"person":{"fullName":"Liv Holm"},"growth":12}`, blobs[1].Text)
	require.Equal(t, `{"fullName":"Kai Berg","growth":-3}`, blobs[2].Text)

	require.Equal(t, []string{"plain"}, origins(SplitHtml("plain", `"fullName":"A","growth":1`)))
}

func TestHttpSource(t *testing.T) {
	var rscHeader, customHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rscHeader = r.Header.Get("RSC")
		customHeader = r.Header.Get("x-team")
		switch r.URL.Path {
		case "/page":
			w.Header().Set("content-type", "text/html; charset=utf-8")
			w.Write([]byte(flightPage))
		case "/flight":
			w.Header().Set("content-type", "text/x-component")
			w.Write([]byte(`1:{"fullName":"Sol Dahl","growth":0}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	rec := &telemetry.Recorder{}

	page, err := NewHttpSource(HttpOptions{
		Url:     server.URL + "/page",
		Headers: map[string]string{"x-team": "growth"},
	}, rec)
	require.NoError(t, err)
	blobs, err := page.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, blobs, 3)
	require.Equal(t, server.URL+"/page#flight", blobs[1].Origin)
	require.Equal(t, "", rscHeader)
	require.Equal(t, "growth", customHeader)

	dumpDir := filepath.Join(t.TempDir(), "dump")
	flight, err := NewHttpSource(HttpOptions{
		Url:     server.URL + "/flight",
		Flight:  true,
		DumpDir: dumpDir,
	}, rec)
	require.NoError(t, err)
	blobs, err = flight.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Blob{{Origin: server.URL + "/flight", Text: `1:{"fullName":"Sol Dahl","growth":0}`}}, blobs)
	require.Equal(t, "1", rscHeader)

	dumped, err := os.ReadFile(filepath.Join(dumpDir, "1.txt"))
	require.NoError(t, err)
	require.Contains(t, string(dumped), "---- RESPONSE ----")

	missing, err := NewHttpSource(HttpOptions{Url: server.URL + "/missing"}, rec)
	require.NoError(t, err)
	_, err = missing.Fetch(context.Background())
	require.ErrorContains(t, err, "404")
}

func TestNewHttpSourceInvalid(t *testing.T) {
	_, err := NewHttpSource(HttpOptions{Url: "ftp://example.com"}, &telemetry.Recorder{})
	require.Error(t, err)
	_, err = NewHttpSource(HttpOptions{Url: "://"}, &telemetry.Recorder{})
	require.Error(t, err)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "one.json"), []byte(`{"fullName":"A","growth":1}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "two.html"), []byte(flightPage), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "skip.txt"), []byte("x"), 0600))

	src, err := NewFileSource(
		filepath.Join(dir, "**", "*.json"),
		filepath.Join(dir, "**", "*.html"),
		filepath.Join(dir, "a", "*.json"),
	)
	require.NoError(t, err)

	blobs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	two := filepath.Join(dir, "a", "b", "two.html")
	require.Equal(t, []string{
		filepath.Join(dir, "a", "one.json"),
		two, two + "#flight", two + "#next-data",
	}, origins(blobs))

	empty, err := NewFileSource(filepath.Join(dir, "*.nothing"))
	require.NoError(t, err)
	_, err = empty.Fetch(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewFileSource("[unterminated")
	require.Error(t, err)
}

type staticSource struct {
	name  string
	blobs []Blob
	err   error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(ctx context.Context) ([]Blob, error) {
	return s.blobs, s.err
}

func TestFetchAll(t *testing.T) {
	rec := &telemetry.Recorder{}
	boom := errors.New("boom")

	blobs, err := FetchAll(context.Background(), rec, []Source{
		staticSource{name: "a", blobs: []Blob{{Origin: "a1"}, {Origin: "a2"}}},
		staticSource{name: "b", err: boom},
		staticSource{name: "c", blobs: []Blob{{Origin: "c1"}}},
	})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "source b")
	require.Equal(t, []string{"a1", "a2", "c1"}, origins(blobs))
	require.Len(t, rec.Find("broken", "fetch_all"), 1)

	blobs, err = FetchAll(context.Background(), rec, nil)
	require.NoError(t, err)
	require.Empty(t, blobs)
}
