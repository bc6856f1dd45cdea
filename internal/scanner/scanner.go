// Package scanner extracts the payload string from a photographed or
// uploaded certificate QR code.
package scanner

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	dErrors "certify/pkg/domain-errors"
)

// MaxImageBytes bounds uploaded images.
const MaxImageBytes = 5 << 20

// Scanner decodes QR codes.
type Scanner struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func New() *Scanner {
	return &Scanner{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Extract returns the text of the first QR code in img.
//
// Empty, oversized or non-image input is a bad request. An image without a
// readable code is not found.
func (s *Scanner) Extract(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", dErrors.New(dErrors.CodeBadRequest, "image is required")
	}
	if len(img) > MaxImageBytes {
		return "", dErrors.New(dErrors.CodeBadRequest, "image exceeds 5 MiB")
	}
	if ct := http.DetectContentType(img); !strings.HasPrefix(ct, "image/") {
		return "", dErrors.New(dErrors.CodeBadRequest, "unsupported content type "+ct)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "image could not be decoded")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(decoded)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "image could not be binarized")
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, s.hints)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeNotFound, "no QR code found in image")
	}
	text := strings.TrimSpace(result.GetText())
	if text == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "QR code is empty")
	}
	return text, nil
}
