package composite_renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"flux_comfy_bot/entities"
)

func encodedSquare(t *testing.T, size int, fill color.Color) entities.GeneratedImage {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, fill)
		}
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("error encoding test image: %v", err)
	}
	return entities.GeneratedImage{Filename: "ComfyUI_00001_.png", Data: buf.Bytes()}
}

func TestTileImages(t *testing.T) {
	renderer := Compositor()

	tiled, err := renderer.TileImages([]entities.GeneratedImage{
		encodedSquare(t, 8, color.White),
		encodedSquare(t, 8, color.Black),
		encodedSquare(t, 8, color.White),
		encodedSquare(t, 8, color.Black),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(tiled)
	if err != nil {
		t.Fatalf("error decoding tiled image: %v", err)
	}

	// four equal squares tile into a 2x2 grid
	bounds := img.Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 16 {
		t.Errorf("tiled size = %dx%d, want 16x16", bounds.Dx(), bounds.Dy())
	}
}

func TestTileImagesUnevenBatch(t *testing.T) {
	renderer := Compositor()

	// three images still get a 2x2 canvas, cells sized to the largest
	tiled, err := renderer.TileImages([]entities.GeneratedImage{
		encodedSquare(t, 8, color.White),
		encodedSquare(t, 4, color.Black),
		encodedSquare(t, 8, color.White),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(tiled)
	if err != nil {
		t.Fatalf("error decoding tiled image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 16 {
		t.Errorf("tiled size = %dx%d, want 16x16", bounds.Dx(), bounds.Dy())
	}
}

func TestTileImagesSinglePassthrough(t *testing.T) {
	renderer := Compositor()

	original := encodedSquare(t, 8, color.White)
	tiled, err := renderer.TileImages([]entities.GeneratedImage{original})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := io.ReadAll(tiled)
	if err != nil {
		t.Fatalf("error reading result: %v", err)
	}
	if !bytes.Equal(data, original.Data) {
		t.Errorf("a single image should pass through untouched")
	}
}

func TestTileImagesEmpty(t *testing.T) {
	if _, err := Compositor().TileImages(nil); err == nil {
		t.Fatal("expected an error for an empty input")
	}
}

func TestTileImagesBadData(t *testing.T) {
	_, err := Compositor().TileImages([]entities.GeneratedImage{
		{Filename: "ComfyUI_00001_.png", Data: []byte("png")},
		{Filename: "ComfyUI_00002_.png", Data: []byte("not a png")},
	})
	if err == nil {
		t.Fatal("expected an error for undecodable data")
	}
	if !strings.Contains(err.Error(), "ComfyUI_00001_.png") {
		t.Errorf("err = %v, want the offending filename", err)
	}
}
