package composite_renderer

import (
	"io"

	"flux_comfy_bot/entities"
)

type Renderer interface {
	TileImages(images []entities.GeneratedImage) (io.Reader, error)
}

// Compositor returns a Renderer that tiles the outputs of one generation
// into a grid.
func Compositor() Renderer {
	return &compositor{}
}
