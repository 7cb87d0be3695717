package blobsvc

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervnjmsdnts/ojt/core"
)

func newTestStore(t *testing.T, maxWidth int) *fileStore {
	conf := &core.Config{Media: core.MediaConfig{Root: t.TempDir(), BaseURL: "/media", MaxSignatureWidth: maxWidth}}
	store, err := NewFileStore(conf)
	require.NoError(t, err)
	return store.(*fileStore)
}

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

// hugePNG returns a small valid PNG whose header announces a w x h image.
func hugePNG(t *testing.T, w, h uint32) []byte {
	data := pngBytes(t, 1, 1)
	// signature (8) | IHDR length (4) | "IHDR" (4) | width (4) | height (4) | ... | crc (4)
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestFileStore_Store(t *testing.T) {
	store := newTestStore(t, 100)

	t.Run("resizes wide images", func(t *testing.T) {
		ref, err := store.Store(context.Background(), pngBytes(t, 400, 80))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, refScheme))

		f, err := os.Open(store.path(strings.TrimPrefix(ref, refScheme)))
		require.NoError(t, err)
		defer f.Close()
		cfg, err := png.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 20, cfg.Height)
	})

	t.Run("keeps narrow images", func(t *testing.T) {
		ref, err := store.Store(context.Background(), pngBytes(t, 50, 10))
		require.NoError(t, err)

		f, err := os.Open(store.path(strings.TrimPrefix(ref, refScheme)))
		require.NoError(t, err)
		defer f.Close()
		cfg, err := png.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Width)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := store.Store(context.Background(), []byte("not an image"))
		require.Error(t, err)
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, ErrInvalidImage, verr.Err)

		entries, err := os.ReadDir(store.root)
		require.NoError(t, err)
		for _, e := range entries {
			assert.Equal(t, ".png", filepath.Ext(e.Name()))
		}
	})
}

func TestFileStore_Store_pixelLimit(t *testing.T) {
	conf := &core.Config{Media: core.MediaConfig{Root: t.TempDir(), BaseURL: "/media", MaxSignaturePixels: 10_000}}
	s, err := NewFileStore(conf)
	require.NoError(t, err)
	store := s.(*fileStore)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "within limit", data: pngBytes(t, 100, 100)},
		{name: "above limit", data: pngBytes(t, 200, 100), wantErr: ErrImageTooLarge},
		{name: "huge header", data: hugePNG(t, 12000, 12000), wantErr: ErrImageTooLarge},
		{name: "overflowing header", data: hugePNG(t, 1<<31-1, 1<<31-1), wantErr: ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Store(context.Background(), tt.data)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "want *core.ValidationError, got %v", err)
			assert.Equal(t, tt.wantErr, verr.Err)
			assert.Equal(t, []core.FieldError{{Field: "signature", Error: tt.wantErr.Error()}}, verr.Fields)
		})
	}

	t.Run("default limit", func(t *testing.T) {
		store := newTestStore(t, 0)
		assert.Equal(t, int64(defaultMaxPixels), store.maxPixels)
		_, err := store.Store(context.Background(), hugePNG(t, 12000, 12000))
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "want *core.ValidationError, got %v", err)
		assert.Equal(t, ErrImageTooLarge, verr.Err)
	})
}

func TestFileStore_Resolve(t *testing.T) {
	store := newTestStore(t, 0)

	ref, err := store.Store(context.Background(), pngBytes(t, 10, 10))
	require.NoError(t, err)

	url, err := store.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, "/media/"+strings.TrimPrefix(ref, refScheme)+".png", url)

	tests := []string{"", "abc", "sig://abc", "file:///etc/passwd", "sig://../../x", refScheme + uuid.New().String()}
	for _, ref := range tests {
		t.Run(ref, func(t *testing.T) {
			_, err := store.Resolve(ref)
			assert.Equal(t, ErrInvalidRef, err)
		})
	}
}
