package blobsvc

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"

	"github.com/ervnjmsdnts/ojt/core"
)

const (
	refScheme        = "sig://"
	defaultMaxPixels = 4_000_000
)

var (
	ErrInvalidImage  = errors.New("signature is not a supported image")
	ErrImageTooLarge = errors.New("signature image is too large")
	ErrInvalidRef    = core.ErrUnknownBlob
)

type fileStore struct {
	root      string
	baseURL   string
	maxWidth  int
	maxPixels int64
}

var _ core.BlobStore = (*fileStore)(nil) // interface compliance check

// NewFileStore keeps signature images as PNG files under conf.Media.Root.
func NewFileStore(conf *core.Config) (core.BlobStore, error) {
	if err := os.MkdirAll(conf.Media.Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media root")
	}
	maxPixels := conf.Media.MaxSignaturePixels
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &fileStore{
		root:      conf.Media.Root,
		baseURL:   conf.Media.BaseURL,
		maxWidth:  conf.Media.MaxSignatureWidth,
		maxPixels: maxPixels,
	}, nil
}

func (s fileStore) Store(ctx context.Context, data []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", signatureError(ErrInvalidImage)
	}
	// reject oversized images before allocating their pixels
	if int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return "", signatureError(ErrImageTooLarge)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", signatureError(ErrInvalidImage)
	}
	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	if err = ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	f, err := os.Create(s.path(id))
	if err != nil {
		return "", errors.Wrap(err, "creating signature file")
	}
	if err = imaging.Encode(f, img, imaging.PNG); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "encoding signature")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing signature file")
	}
	return refScheme + id, nil
}

func (s fileStore) Resolve(ref string) (string, error) {
	id := strings.TrimPrefix(ref, refScheme)
	if id == ref {
		return "", ErrInvalidRef
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidRef
	}
	if _, err := os.Stat(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return "", ErrInvalidRef
		}
		return "", errors.Wrap(err, "checking signature file")
	}
	return s.baseURL + "/" + id + ".png", nil
}

func signatureError(err error) error {
	return core.NewValidationError(err, core.FieldError{Field: "signature", Error: err.Error()})
}

func (s fileStore) path(id string) string {
	return filepath.Join(s.root, id+".png")
}
