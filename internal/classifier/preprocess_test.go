package classifier

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestParsePreprocessorVariants(t *testing.T) {
	cases := []struct {
		name    string
		json    string
		wantW   int
		wantH   int
		wantErr bool
	}{
		{
			name:  "height and width",
			json:  `{"do_resize":true,"size":{"height":256,"width":256},"resample":3,"image_mean":[0.5,0.5,0.5],"image_std":[0.5,0.5,0.5]}`,
			wantW: 256,
			wantH: 256,
		},
		{
			name:  "shortest edge with crop",
			json:  `{"size":{"shortest_edge":256},"do_center_crop":true,"crop_size":{"height":224,"width":224}}`,
			wantW: 224,
			wantH: 224,
		},
		{
			name:  "bare integer size",
			json:  `{"size":384}`,
			wantW: 384,
			wantH: 384,
		},
		{
			name:  "empty uses defaults",
			json:  `{}`,
			wantW: defaultImageSize,
			wantH: defaultImageSize,
		},
		{
			name:    "invalid size object",
			json:    `{"size":{"foo":1}}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := parsePreprocessor([]byte(tc.json))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			w, h := p.OutputSize()
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("expected %dx%d, got %dx%d", tc.wantW, tc.wantH, w, h)
			}
		})
	}
}

func TestPixelsNormalizesPerChannel(t *testing.T) {
	p := DefaultPreprocessor()
	p.Width, p.Height = 4, 4

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}

	out := p.Pixels(img)
	if len(out) != 3*4*4 {
		t.Fatalf("expected %d values, got %d", 3*4*4, len(out))
	}
	for c := 0; c < 3; c++ {
		want := (1 - imageNetMean[c]) / imageNetStd[c]
		got := out[c*16]
		if math.Abs(float64(got-want)) > 1e-5 {
			t.Fatalf("channel %d: expected %v, got %v", c, want, got)
		}
	}
}

func TestPixelsDropsAlphaWithoutPremultiplying(t *testing.T) {
	p := DefaultPreprocessor()
	p.Width, p.Height = 2, 2
	p.Normalize = false

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 0, 0, 0
	}

	out := p.Pixels(img)
	if !approx(out[0], 1) {
		t.Fatalf("expected red channel 1.0 for transparent red pixel, got %v", out[0])
	}
	if out[4] != 0 || out[8] != 0 {
		t.Fatalf("expected green and blue 0, got %v %v", out[4], out[8])
	}
}

func TestPixelsCentreCrop(t *testing.T) {
	p := &Preprocessor{
		ShortestEdge:  4,
		CenterCrop:    true,
		CropWidth:     2,
		CropHeight:    2,
		Resample:      ResampleNearest,
		Rescale:       true,
		RescaleFactor: 1.0 / 255.0,
	}

	// 8x4 image: left half black, right half white; short side already 4
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 4; x < 8; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := p.Pixels(img)
	if len(out) != 3*2*2 {
		t.Fatalf("expected 12 values, got %d", len(out))
	}
	// centre columns 3 and 4 straddle the boundary
	if !approx(out[0], 0) || !approx(out[1], 1) {
		t.Fatalf("expected crop across the black/white boundary, got %v", out[:4])
	}
}

func TestScaleShortestEdge(t *testing.T) {
	w, h := scaleShortestEdge(400, 200, 100)
	if w != 200 || h != 100 {
		t.Fatalf("expected 200x100, got %dx%d", w, h)
	}
	w, h = scaleShortestEdge(300, 600, 150)
	if w != 150 || h != 300 {
		t.Fatalf("expected 150x300, got %dx%d", w, h)
	}
}

func approx(got, want float32) bool {
	return math.Abs(float64(got-want)) < 1e-5
}
