package composite_renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"flux_comfy_bot/entities"
)

type compositor struct{}

// TileImages merges the outputs of one generation into a single PNG grid.
// The backend encodes every output as PNG, and a batch shares the
// workflow's resolution, so cells are sized to the largest output and laid
// out near-square, filling row by row.
func (c *compositor) TileImages(images []entities.GeneratedImage) (io.Reader, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if len(images) == 1 {
		return bytes.NewReader(images[0].Data), nil
	}

	decoded := make([]image.Image, len(images))
	var cellWidth, cellHeight int
	for i, generated := range images {
		frame, err := png.Decode(bytes.NewReader(generated.Data))
		if err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", generated.Filename, err)
		}
		decoded[i] = frame
		bounds := frame.Bounds()
		cellWidth = max(cellWidth, bounds.Dx())
		cellHeight = max(cellHeight, bounds.Dy())
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(decoded)))))
	rows := (len(decoded) + cols - 1) / cols

	canvas := image.NewRGBA(image.Rect(0, 0, cols*cellWidth, rows*cellHeight))
	for i, frame := range decoded {
		x := (i % cols) * cellWidth
		y := (i / cols) * cellHeight
		bounds := frame.Bounds()
		draw.Draw(canvas, image.Rect(x, y, x+bounds.Dx(), y+bounds.Dy()), frame, bounds.Min, draw.Over)
	}

	out := new(bytes.Buffer)
	if err := png.Encode(out, canvas); err != nil {
		return nil, err
	}
	return out, nil
}
