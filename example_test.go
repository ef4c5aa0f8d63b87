package preview_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/lumastock/preview"
)

func Example_generateSafe() {
	// Create a gradient image (1200x900 pixels)
	img := image.NewRGBA(image.Rect(0, 0, 1200, 900))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / 1200), uint8(y * 255 / 900), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		fmt.Printf("Error encoding source: %v\n", err)
		return
	}

	g, err := preview.New(preview.WithWatermarkText("sample"))
	if err != nil {
		fmt.Printf("Error creating generator: %v\n", err)
		return
	}

	res, err := g.GenerateSafe(context.Background(), buf.Bytes())
	if err != nil {
		fmt.Printf("Error generating preview: %v\n", err)
		return
	}
	fmt.Println(res.Format, res.Width, res.Height, res.TwoPass)

	// Output:
	// jpeg 600 450 false
}

func Example_invalidInput() {
	_, err := preview.GeneratePreviewSafe(context.Background(), []byte("not an image"), "")
	var ie *preview.InvalidInputError
	fmt.Println(errors.As(err, &ie))

	// Output:
	// true
}
