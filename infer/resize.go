package infer

import (
	"bytes"
	"image"

	// Decoders for the payload formats the pipeline accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// decodeDimensions reads the image header without materializing pixels.
func decodeDimensions(payload []byte) (Dimensions, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return Dimensions{}, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, ErrInvalidInput
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// FitWithin scales src down preserving aspect ratio so both dimensions fit
// the bounds. Deterministic given the input dimensions; images already
// within bounds are returned unchanged (never upscaled).
func FitWithin(src Dimensions, maxWidth, maxHeight int) Dimensions {
	if src.Width <= maxWidth && src.Height <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(src.Width)
	scaleH := float64(maxHeight) / float64(src.Height)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	out := Dimensions{
		Width:  int(float64(src.Width) * scale),
		Height: int(float64(src.Height) * scale),
	}
	if out.Width < 1 {
		out.Width = 1
	}
	if out.Height < 1 {
		out.Height = 1
	}
	return out
}
