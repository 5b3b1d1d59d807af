package publish

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 80

// NormalizeImage decodes img, scales it down to maxWidth when it is wider and
// re-encodes it as JPEG. The returned image keeps the original base name
// with a .jpg extension. Decoding fails for anything that is not a GIF,
// JPEG, PNG or WebP picture.
func NormalizeImage(img Image, maxWidth int) (Image, error) {
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxWidth > 0 && w > maxWidth {
		newH := h * maxWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}

	name := strings.TrimSuffix(img.Name, path.Ext(img.Name)) + ".jpg"
	return Image{Name: name, Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}
