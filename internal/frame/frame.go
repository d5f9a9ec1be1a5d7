// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package frame

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Channels is the number of color channels in a Frame. Frames are always
// 8-bit BGR; callers with RGBA or grayscale sources must convert first
// (FromImage does this).
const Channels = 3

// ErrInvalidFrame indicates a frame that cannot be analyzed: nil, empty,
// or with a pixel buffer that disagrees with its declared dimensions.
// Invalid frames are rejected before any feature extraction runs.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a decoded 8-bit BGR raster image. It is the only pixel
// representation the detection core operates on. A Frame is owned by the
// caller for the duration of one detection call and is never retained.
type Frame struct {
	width  int
	height int
	// pix holds interleaved BGR triplets, row-major, len = width*height*3.
	pix []uint8
}

// New creates a Frame from raw interleaved BGR bytes.
func New(width, height int, pix []uint8) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, width, height)
	}
	if len(pix) != width*height*Channels {
		return nil, fmt.Errorf("%w: pixel buffer length %d, want %d",
			ErrInvalidFrame, len(pix), width*height*Channels)
	}
	return &Frame{width: width, height: height, pix: pix}, nil
}

// FromImage converts a decoded stdlib image into a BGR Frame.
// RGBA and grayscale sources are converted; alpha is dropped.
func FromImage(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, w, h)
	}

	pix := make([]uint8, w*h*Channels)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pix[i] = uint8(b >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(r >> 8)
			i += Channels
		}
	}
	return &Frame{width: w, height: h, pix: pix}, nil
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// BGR returns the blue, green and red components of the pixel at (x, y).
// Coordinates outside the frame are clamped to the nearest edge pixel.
func (f *Frame) BGR(x, y int) (b, g, r uint8) {
	x = clamp(x, 0, f.width-1)
	y = clamp(y, 0, f.height-1)
	i := (y*f.width + x) * Channels
	return f.pix[i], f.pix[i+1], f.pix[i+2]
}

// Gray returns the BT.601 luma plane as float64 values in [0, 255],
// row-major, length Width*Height.
func (f *Frame) Gray() []float64 {
	gray := make([]float64, f.width*f.height)
	for i := range gray {
		p := i * Channels
		b := float64(f.pix[p])
		g := float64(f.pix[p+1])
		r := float64(f.pix[p+2])
		gray[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return gray
}

// GrayBytes returns the luma plane as uint8 values, row-major. This is the
// layout the pigo cascade classifier consumes.
func (f *Frame) GrayBytes() []uint8 {
	gray := make([]uint8, f.width*f.height)
	for i := range gray {
		p := i * Channels
		b := float64(f.pix[p])
		g := float64(f.pix[p+1])
		r := float64(f.pix[p+2])
		gray[i] = uint8(0.299*r + 0.587*g + 0.114*b)
	}
	return gray
}

// Crop returns a copy of the region r, clamped to the frame bounds.
// An empty intersection is an error.
func (f *Frame) Crop(r image.Rectangle) (*Frame, error) {
	r = r.Intersect(image.Rect(0, 0, f.width, f.height))
	if r.Empty() {
		return nil, fmt.Errorf("%w: crop region outside frame", ErrInvalidFrame)
	}

	w, h := r.Dx(), r.Dy()
	pix := make([]uint8, w*h*Channels)
	for y := 0; y < h; y++ {
		srcOff := ((r.Min.Y+y)*f.width + r.Min.X) * Channels
		dstOff := y * w * Channels
		copy(pix[dstOff:dstOff+w*Channels], f.pix[srcOff:srcOff+w*Channels])
	}
	return &Frame{width: w, height: h, pix: pix}, nil
}

// Resize returns a bilinearly scaled copy of the frame.
func (f *Frame) Resize(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize to %dx%d", ErrInvalidFrame, width, height)
	}
	if width == f.width && height == f.height {
		clone := make([]uint8, len(f.pix))
		copy(clone, f.pix)
		return &Frame{width: width, height: height, pix: clone}, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), f.toNRGBA(), image.Rect(0, 0, f.width, f.height), xdraw.Src, nil)
	return FromImage(dst)
}

// toNRGBA builds an NRGBA view of the frame for stdlib interop.
func (f *Frame) toNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	for i := 0; i < f.width*f.height; i++ {
		p := i * Channels
		q := i * 4
		img.Pix[q] = f.pix[p+2]   // R
		img.Pix[q+1] = f.pix[p+1] // G
		img.Pix[q+2] = f.pix[p]   // B
		img.Pix[q+3] = 0xff
	}
	return img
}

// Validate reports whether the frame is analyzable. It is called once at
// the detection entry point so extractors never see malformed input.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if f.width <= 0 || f.height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.width, f.height)
	}
	if len(f.pix) != f.width*f.height*Channels {
		return fmt.Errorf("%w: pixel buffer length %d, want %d",
			ErrInvalidFrame, len(f.pix), f.width*f.height*Channels)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
