package images

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashSize bounds the image fed to the encoder. A placeholder needs no
// more detail than this and encoding stays in the millisecond range.
const blurHashSize = 64

// ComputeBlurHash encodes img as a BlurHash string with 3x4 components,
// more vertical detail suiting portrait sheet pages.
func ComputeBlurHash(img image.Image) (string, error) {
	small := fit(img, blurHashSize, blurHashSize, draw.ApproxBiLinear)
	hash, err := blurhash.Encode(3, 4, small)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// fit scales img down to fit within maxW x maxH, keeping its aspect ratio.
// Images already small enough are returned unchanged.
func fit(img image.Image, maxW, maxH int, scaler draw.Scaler) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	dstW, dstH := maxW, h*maxW/w
	if dstH > maxH {
		dstW, dstH = w*maxH/h, maxH
	}
	dstW, dstH = max(dstW, 1), max(dstH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
