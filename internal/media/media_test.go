package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	pngData := tinyPNG(t)

	tests := []struct {
		name    string
		data    []byte
		max     int64
		problem Problem
	}{
		{name: "png accepted", data: pngData, max: 0},
		{name: "empty", data: nil, problem: Empty},
		{name: "too large", data: pngData, max: 10, problem: TooLarge},
		{name: "text", data: []byte("hello there, not an image"), problem: NotImage},
		{name: "truncated png", data: pngData[:20], problem: NotImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Validate("pic.png", tt.data, tt.max)
			if tt.problem == 0 {
				require.NoError(t, err)
				assert.Equal(t, "image/png", sel.ContentType)
				assert.Equal(t, "png", sel.Format)
				assert.Equal(t, 3, sel.Width)
				assert.Equal(t, 2, sel.Height)
				return
			}
			se, ok := AsSelection(err)
			require.True(t, ok, "want SelectionError, got %v", err)
			assert.Equal(t, tt.problem, se.Problem)
		})
	}
}

func TestValidate_ExactlyAtLimit(t *testing.T) {
	data := tinyPNG(t)
	_, err := Validate("pic.png", data, int64(len(data)))
	assert.NoError(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.png")
	require.NoError(t, os.WriteFile(path, tinyPNG(t), 0o600))

	sel, err := LoadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "avatar.png", sel.Name)

	_, err = LoadFile(path, 8)
	se, ok := AsSelection(err)
	require.True(t, ok)
	assert.Equal(t, TooLarge, se.Problem)

	_, err = LoadFile(filepath.Join(dir, "missing.png"), 0)
	assert.Error(t, err)
	_, ok = AsSelection(err)
	assert.False(t, ok)
}

func TestPreviewDataURI(t *testing.T) {
	sel, err := Validate("pic.png", tinyPNG(t), 0)
	require.NoError(t, err)
	uri := sel.PreviewDataURI()
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,iVBOR"), uri)
}

type uploadCapture struct {
	preset   string
	folder   string
	hasFold  bool
	filename string
	size     int
}

func newCDN(t *testing.T, status int, respBody string) (*httptest.Server, *uploadCapture) {
	t.Helper()
	got := &uploadCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got.preset = r.FormValue("upload_preset")
		_, got.hasFold = r.MultipartForm.Value["folder"]
		got.folder = r.FormValue("folder")
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		got.filename = hdr.Filename
		got.size = len(data)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestUploader_Upload(t *testing.T) {
	srv, got := newCDN(t, http.StatusOK, `{"secure_url":"https://cdn.example/x.png"}`)
	sel, err := Validate("x.png", tinyPNG(t), 0)
	require.NoError(t, err)

	url, err := NewUploader(srv.URL, "whispr").Upload(context.Background(), sel, "whispr-profiles")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.png", url)
	assert.Equal(t, "whispr", got.preset)
	assert.Equal(t, "whispr-profiles", got.folder)
	assert.Equal(t, "x.png", got.filename)
	assert.Equal(t, len(sel.Data), got.size)
}

func TestUploader_NoFolder(t *testing.T) {
	srv, got := newCDN(t, http.StatusOK, `{"secure_url":"https://cdn.example/y.png"}`)
	sel, err := Validate("y.png", tinyPNG(t), 0)
	require.NoError(t, err)

	_, err = NewUploader(srv.URL, "whispr").Upload(context.Background(), sel, "")
	require.NoError(t, err)
	assert.False(t, got.hasFold)
}

func TestUploader_Failures(t *testing.T) {
	sel, err := Validate("x.png", tinyPNG(t), 0)
	require.NoError(t, err)

	t.Run("status", func(t *testing.T) {
		srv, _ := newCDN(t, http.StatusBadRequest, `{"error":{"message":"bad preset"}}`)
		_, err := NewUploader(srv.URL, "nope").Upload(context.Background(), sel, "")
		var upErr *UploadError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, http.StatusBadRequest, upErr.Status)
		assert.EqualError(t, err, "media: upload rejected with status 400")
	})

	t.Run("missing secure url", func(t *testing.T) {
		srv, _ := newCDN(t, http.StatusOK, `{"url":"http://cdn.example/x.png"}`)
		_, err := NewUploader(srv.URL, "whispr").Upload(context.Background(), sel, "")
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.EqualError(t, err, "media: upload returned no url")
	})

	t.Run("nil selection", func(t *testing.T) {
		_, err := NewUploader("http://127.0.0.1:1", "whispr").Upload(context.Background(), nil, "")
		assert.Error(t, err)
	})
}
