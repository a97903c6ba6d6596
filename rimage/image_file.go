// Package rimage holds the image file codecs and pixel operations used by framepipe's frame
// sources, filters, detectors and viewers.
package rimage

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"go.viam.com/framepipe/utils"
)

// DecodeImage decodes image bytes of the given mime type. An empty mime type lets the image
// package sniff the format.
func DecodeImage(ctx context.Context, imgBytes []byte, mimeType string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := bytes.NewReader(imgBytes)
	var (
		img image.Image
		err error
	)
	switch mimeType {
	case "":
		img, _, err = image.Decode(r)
	case utils.MimeTypePNG:
		img, err = png.Decode(r)
	case utils.MimeTypeJPEG:
		img, err = jpeg.Decode(r)
	case utils.MimeTypeQOI:
		img, err = qoi.Decode(r)
	case utils.MimeTypePPM:
		img, err = ppm.Decode(r)
	case utils.MimeTypeBMP:
		img, err = bmp.Decode(r)
	case utils.MimeTypeTIFF:
		img, err = tiff.Decode(r)
	case utils.MimeTypeWEBP:
		img, err = webp.Decode(r)
	default:
		return nil, errors.Errorf("do not know how to decode %q", mimeType)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", mimeType)
	}
	return img, nil
}

// EncodeImage encodes img as the given mime type. PNGs use the best compression.
func EncodeImage(ctx context.Context, img image.Image, mimeType string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(ctx, &buf, img, mimeType); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTo(ctx context.Context, w io.Writer, img image.Image, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	switch mimeType {
	case utils.MimeTypePNG:
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		err = encoder.Encode(w, img)
	case utils.MimeTypeJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case utils.MimeTypeQOI:
		err = qoi.Encode(w, img)
	case utils.MimeTypePPM:
		// The ppm encoder only takes RGBA images.
		err = ppm.Encode(w, toRGBA(img))
	case utils.MimeTypeBMP:
		err = bmp.Encode(w, img)
	case utils.MimeTypeTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.Errorf("do not know how to encode %q", mimeType)
	}
	return errors.Wrapf(err, "encoding %s", mimeType)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// NewImageFromFile reads and decodes the image at path, picking the decoder from its extension.
func NewImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(context.Background(), data, utils.MimeTypeFromPath(path))
	if err != nil {
		return nil, errors.Wrapf(err, "image file %q", path)
	}
	return img, nil
}

// DecodeConfigFromFile reads the dimensions and colour model of the image at path. Formats that
// registered a header sniffer are read without decoding pixels; anything else is decoded fully.
func DecodeConfigFromFile(path string) (image.Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if errors.Is(err, image.ErrFormat) {
		img, err := NewImageFromFile(path)
		if err != nil {
			return image.Config{}, err
		}
		bounds := img.Bounds()
		return image.Config{ColorModel: img.ColorModel(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}
	if err != nil {
		return image.Config{}, errors.Wrapf(err, "image file %q", path)
	}
	return cfg, nil
}

// WriteImageToFile encodes img into a new file at path, picking the encoder from its extension.
// It fails rather than overwrite an existing file.
func WriteImageToFile(path string, img image.Image) (err error) {
	mimeType := utils.MimeTypeFromPath(path)
	if mimeType == "" {
		return errors.Errorf("no image encoder for %q", path)
	}
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Wrapf(multierr.Combine(err, f.Close()), "writing %q", path)
	}()
	w := bufio.NewWriter(f)
	if err := encodeTo(context.Background(), w, img, mimeType); err != nil {
		return err
	}
	return w.Flush()
}

// ReplaceImageFile writes img to path through a temporary file, so a concurrent reader of path
// sees either the previous image or the new one.
func ReplaceImageFile(path string, img image.Image) error {
	tmp := path + ".tmp" + utils.ExtensionForMimeType(utils.MimeTypeFromPath(path))
	utils.RemoveFileNoError(tmp)
	if err := WriteImageToFile(tmp, img); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
