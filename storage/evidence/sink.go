// Package evidence stores the snapshot images of violations off the decision path.
package evidence

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // decode PNG payloads
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/trezcool/proctor/core/proctor"
)

var ErrEmptySnapshot = errors.New("empty snapshot")

const jpegQuality = 85

// Sink writes snapshots as files under a root directory.
type Sink struct {
	root string
}

// NewSink creates root if needed.
func NewSink(root string) (*Sink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating evidence root")
	}
	return &Sink{root: root}, nil
}

func (s *Sink) Root() string { return s.root }

// FileName is the artifact name of a snapshot of studentID taken at `at`: {studentId}_{HHMMSS}.jpg.
func FileName(studentID string, at time.Time) string {
	return fmt.Sprintf("%s_%s.jpg", studentID, at.Format("150405"))
}

// Persist decodes snap, downscales it to snap.MaxWidth and writes it under the root as a JPEG.
// It returns the artifact name, or proctor.EvidenceUnavailable and the cause when the snapshot
// cannot be stored. Nothing is left on disk once ctx is done.
func (s *Sink) Persist(ctx context.Context, snap proctor.Snapshot) (string, error) {
	img, err := DecodePayload(snap.Payload)
	if err != nil {
		return proctor.EvidenceUnavailable, errors.Wrapf(err, "decoding snapshot of %s", snap.StudentID)
	}
	img = Downscale(img, snap.MaxWidth)

	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return proctor.EvidenceUnavailable, errors.Wrap(err, "encoding jpeg")
	}
	if err = ctx.Err(); err != nil {
		return proctor.EvidenceUnavailable, errors.Wrap(err, "persisting snapshot")
	}

	name := FileName(snap.StudentID, snap.TakenAt)
	if err = s.write(ctx, name, buf.Bytes()); err != nil {
		return proctor.EvidenceUnavailable, err
	}
	return name, nil
}

// write stores data in a temporary file and renames it to name if ctx is still live.
func (s *Sink) write(ctx context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, "."+name+".*")
	if err != nil {
		return errors.Wrap(err, "creating snapshot file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing snapshot")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	if err = ctx.Err(); err != nil {
		return errors.Wrap(err, "persisting snapshot")
	}
	return errors.Wrap(os.Rename(tmp.Name(), filepath.Join(s.root, name)), "writing snapshot")
}

// DecodePayload decodes a base64 JPEG or PNG image, stripping any data URL header ("data:image/jpeg;base64,").
func DecodePayload(payload string) (image.Image, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptySnapshot
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decoding base64")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return img, nil
}

// Downscale resizes img to width, keeping its aspect ratio. Smaller images are returned as is.
func Downscale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height == 0 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
