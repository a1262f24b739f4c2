package stamper

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// renderScale is the pixel density of a normalized stamp relative to its box
// in points. The watermark is drawn at 1/renderScale so it lands exactly on
// the box while keeping some resolution for print.
const renderScale = 2

// normalizeImage decodes a PNG and resamples it onto a transparent canvas with
// the aspect ratio of spec, so the image fills the box like a stretched draw.
func normalizeImage(data []byte, spec StampSpec) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrImageDecode)
	}

	w := int(math.Round(spec.Width * renderScale))
	h := int(math.Round(spec.Height * renderScale))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode normalized stamp: %w", err)
	}
	return buf.Bytes(), nil
}
