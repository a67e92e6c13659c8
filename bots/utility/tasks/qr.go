// Package tasks implements the two utilities the bot offers: QR code
// rendering and best-effort URL shortening.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/m3rciful/utilitybot/core/logger"
)

var (
	// ErrEmptyInput is returned for blank QR content.
	ErrEmptyInput = errors.New("qr: empty input")
	// ErrRender wraps encoder failures, usually content too long for the highest recovery level.
	ErrRender = errors.New("qr: render failed")
)

// DefaultQRSize is the edge of the produced PNG in pixels.
const DefaultQRSize = 400

// QRGenerator renders PNG QR codes with the highest error correction level
// and the standard four module quiet zone.
type QRGenerator struct {
	size int
}

// NewQRGenerator returns a generator producing size x size images.
func NewQRGenerator(size int) *QRGenerator {
	if size <= 0 {
		size = DefaultQRSize
	}
	return &QRGenerator{size: size}
}

// Size reports the edge of produced images in pixels.
func (g *QRGenerator) Size() int { return g.size }

// Generate encodes the full text, untrimmed, into a PNG image.
func (g *QRGenerator) Generate(ctx context.Context, text string) ([]byte, error) {
	return GenerateQR(ctx, text, g.size)
}

// GenerateQR renders text as a size x size PNG.
func GenerateQR(ctx context.Context, text string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	start := time.Now()
	png, err := qrcode.Encode(text, qrcode.Highest, size)
	if err != nil {
		logger.Warn(ctx, "tasks.qr", "render",
			slog.String("status", "fail"),
			slog.Int("input_len", len(text)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	logger.Debug(ctx, "tasks.qr", "render",
		slog.String("status", "ok"),
		slog.Int("input_len", len(text)),
		slog.Int("bytes", len(png)),
		slog.Duration("duration", logger.Took(start)),
	)
	return png, nil
}
