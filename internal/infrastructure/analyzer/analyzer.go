package analyzer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/disintegration/imaging"

	// Register decoders for the formats accepted at upload beyond the
	// stdlib jpeg/png/gif set.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Result holds the metadata derived from a stored blob.
type Result struct {
	SizeBytes int64
	Checksum  string
	Width     int
	Height    int
}

type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// Analyze computes size and sha256 checksum of the payload and probes
// the image dimensions. Size and checksum are always filled in the
// returned result; a non-nil error means the payload is not a decodable
// image.
func (a *Analyzer) Analyze(data []byte) (Result, error) {
	sum := sha256.Sum256(data)
	res := Result{
		SizeBytes: int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
	}

	if len(data) == 0 {
		return res, fmt.Errorf("blob is empty")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return res, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return res, fmt.Errorf("image has zero dimensions")
	}

	res.Width = bounds.Dx()
	res.Height = bounds.Dy()
	return res, nil
}
