// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package frame

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		width   int
		height  int
		pixLen  int
		wantErr bool
	}{
		{"valid", 4, 3, 4 * 3 * Channels, false},
		{"single pixel", 1, 1, Channels, false},
		{"zero width", 0, 3, 0, true},
		{"negative height", 4, -1, 12, true},
		{"buffer too short", 4, 3, 35, true},
		{"buffer too long", 4, 3, 37, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.width, tt.height, make([]uint8, tt.pixLen))
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%d, %d, len %d) error = %v, wantErr %v",
					tt.width, tt.height, tt.pixLen, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("error %v should wrap ErrInvalidFrame", err)
			}
		})
	}
}

func TestFromImage(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	f, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	if f.Width() != 2 || f.Height() != 2 {
		t.Fatalf("dimensions = %dx%d, want 2x2", f.Width(), f.Height())
	}

	b, g, r := f.BGR(0, 0)
	if b != 30 || g != 20 || r != 10 {
		t.Errorf("BGR(0,0) = (%d, %d, %d), want (30, 20, 10)", b, g, r)
	}
	b, g, r = f.BGR(1, 0)
	if b != 50 || g != 100 || r != 200 {
		t.Errorf("BGR(1,0) = (%d, %d, %d), want (50, 100, 200)", b, g, r)
	}
}

func TestFromImageNil(t *testing.T) {
	t.Parallel()

	if _, err := FromImage(nil); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("FromImage(nil) error = %v, want ErrInvalidFrame", err)
	}
}

func TestBGRClampsOutOfBounds(t *testing.T) {
	t.Parallel()

	pix := make([]uint8, 2*2*Channels)
	pix[0], pix[1], pix[2] = 1, 2, 3 // (0,0)
	last := (1*2 + 1) * Channels
	pix[last], pix[last+1], pix[last+2] = 7, 8, 9 // (1,1)

	f, err := New(2, 2, pix)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if b, _, _ := f.BGR(-5, -5); b != 1 {
		t.Errorf("BGR(-5,-5) blue = %d, want clamped to (0,0) = 1", b)
	}
	if b, _, _ := f.BGR(10, 10); b != 7 {
		t.Errorf("BGR(10,10) blue = %d, want clamped to (1,1) = 7", b)
	}
}

func TestGray(t *testing.T) {
	t.Parallel()

	// One pure-red pixel: BT.601 luma = 0.299 * 255.
	f, err := New(1, 1, []uint8{0, 0, 255})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	gray := f.Gray()
	if len(gray) != 1 {
		t.Fatalf("Gray() length = %d, want 1", len(gray))
	}
	want := 0.299 * 255
	if math.Abs(gray[0]-want) > 1e-9 {
		t.Errorf("Gray()[0] = %f, want %f", gray[0], want)
	}

	grayBytes := f.GrayBytes()
	if grayBytes[0] != uint8(want) {
		t.Errorf("GrayBytes()[0] = %d, want %d", grayBytes[0], uint8(want))
	}
}

func TestCrop(t *testing.T) {
	t.Parallel()

	pix := make([]uint8, 4*4*Channels)
	for i := range pix {
		pix[i] = uint8(i)
	}
	f, err := New(4, 4, pix)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("interior region", func(t *testing.T) {
		t.Parallel()

		cropped, err := f.Crop(image.Rect(1, 1, 3, 3))
		if err != nil {
			t.Fatalf("Crop() error = %v", err)
		}
		if cropped.Width() != 2 || cropped.Height() != 2 {
			t.Fatalf("cropped dimensions = %dx%d, want 2x2", cropped.Width(), cropped.Height())
		}
		wantB, wantG, wantR := f.BGR(1, 1)
		b, g, r := cropped.BGR(0, 0)
		if b != wantB || g != wantG || r != wantR {
			t.Errorf("cropped (0,0) = (%d,%d,%d), want source (1,1) = (%d,%d,%d)",
				b, g, r, wantB, wantG, wantR)
		}
	})

	t.Run("overhanging region is clamped", func(t *testing.T) {
		t.Parallel()

		cropped, err := f.Crop(image.Rect(2, 2, 10, 10))
		if err != nil {
			t.Fatalf("Crop() error = %v", err)
		}
		if cropped.Width() != 2 || cropped.Height() != 2 {
			t.Errorf("cropped dimensions = %dx%d, want 2x2", cropped.Width(), cropped.Height())
		}
	})

	t.Run("region outside frame", func(t *testing.T) {
		t.Parallel()

		if _, err := f.Crop(image.Rect(10, 10, 20, 20)); !errors.Is(err, ErrInvalidFrame) {
			t.Errorf("Crop() error = %v, want ErrInvalidFrame", err)
		}
	})
}

func TestResize(t *testing.T) {
	t.Parallel()

	// Uniform mid-gray survives bilinear scaling exactly.
	pix := make([]uint8, 8*8*Channels)
	for i := range pix {
		pix[i] = 128
	}
	f, err := New(8, 8, pix)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resized, err := f.Resize(4, 4)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if resized.Width() != 4 || resized.Height() != 4 {
		t.Fatalf("resized dimensions = %dx%d, want 4x4", resized.Width(), resized.Height())
	}
	if b, g, r := resized.BGR(2, 2); b != 128 || g != 128 || r != 128 {
		t.Errorf("resized uniform frame pixel = (%d,%d,%d), want (128,128,128)", b, g, r)
	}

	if _, err := f.Resize(0, 4); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Resize(0, 4) error = %v, want ErrInvalidFrame", err)
	}

	same, err := f.Resize(8, 8)
	if err != nil {
		t.Fatalf("Resize to same size error = %v", err)
	}
	if same == f {
		t.Error("Resize to same size should return a copy, not the receiver")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	var nilFrame *Frame
	if err := nilFrame.Validate(); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("nil frame Validate() = %v, want ErrInvalidFrame", err)
	}

	f, err := New(2, 2, make([]uint8, 2*2*Channels))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("valid frame Validate() = %v, want nil", err)
	}

	f.pix = f.pix[:5]
	if err := f.Validate(); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("truncated frame Validate() = %v, want ErrInvalidFrame", err)
	}
}
