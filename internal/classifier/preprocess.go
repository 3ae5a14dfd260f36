package classifier

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const defaultImageSize = 224

// Resample filters as numbered in preprocessor_config.json.
const (
	ResampleNearest  = 0
	ResampleLanczos  = 1
	ResampleBilinear = 2
	ResampleBicubic  = 3
)

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocessor turns an RGB image into the model's CHW float32 input.
type Preprocessor struct {
	// Width and Height are the resize target. When ShortestEdge is set the
	// short side is scaled to it instead and the aspect ratio is kept.
	Width        int
	Height       int
	ShortestEdge int

	CenterCrop bool
	CropWidth  int
	CropHeight int

	Resample int

	Rescale       bool
	RescaleFactor float32

	Normalize bool
	Mean      [3]float32
	Std       [3]float32
}

// DefaultPreprocessor matches the usual ViT-style image processor.
func DefaultPreprocessor() *Preprocessor {
	return &Preprocessor{
		Width:         defaultImageSize,
		Height:        defaultImageSize,
		Resample:      ResampleBicubic,
		Rescale:       true,
		RescaleFactor: 1.0 / 255.0,
		Normalize:     true,
		Mean:          imageNetMean,
		Std:           imageNetStd,
	}
}

type preprocessorFile struct {
	DoResize      *bool           `json:"do_resize"`
	Size          json.RawMessage `json:"size"`
	Resample      *int            `json:"resample"`
	DoCenterCrop  *bool           `json:"do_center_crop"`
	CropSize      json.RawMessage `json:"crop_size"`
	DoRescale     *bool           `json:"do_rescale"`
	RescaleFactor *float32        `json:"rescale_factor"`
	DoNormalize   *bool           `json:"do_normalize"`
	ImageMean     []float32       `json:"image_mean"`
	ImageStd      []float32       `json:"image_std"`
}

type sizeSpec struct {
	Height       int `json:"height"`
	Width        int `json:"width"`
	ShortestEdge int `json:"shortest_edge"`
}

// LoadPreprocessor reads preprocessor_config.json from dir. A missing file
// yields DefaultPreprocessor.
func LoadPreprocessor(dir string) (*Preprocessor, error) {
	path := filepath.Join(dir, "preprocessor_config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPreprocessor(), nil
		}
		return nil, err
	}
	p, err := parsePreprocessor(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

func parsePreprocessor(data []byte) (*Preprocessor, error) {
	var f preprocessorFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	p := DefaultPreprocessor()
	if f.Resample != nil {
		p.Resample = *f.Resample
	}
	if len(f.Size) > 0 && (f.DoResize == nil || *f.DoResize) {
		size, err := parseSize(f.Size)
		if err != nil {
			return nil, fmt.Errorf("size: %w", err)
		}
		p.Width, p.Height, p.ShortestEdge = size.Width, size.Height, size.ShortestEdge
		if p.ShortestEdge > 0 {
			p.Width, p.Height = 0, 0
		}
	}
	if f.DoCenterCrop != nil && *f.DoCenterCrop {
		p.CenterCrop = true
		p.CropWidth, p.CropHeight = p.Width, p.Height
		if len(f.CropSize) > 0 {
			crop, err := parseSize(f.CropSize)
			if err != nil {
				return nil, fmt.Errorf("crop_size: %w", err)
			}
			p.CropWidth, p.CropHeight = crop.Width, crop.Height
		}
	}
	if f.DoRescale != nil {
		p.Rescale = *f.DoRescale
	}
	if f.RescaleFactor != nil {
		p.RescaleFactor = *f.RescaleFactor
	}
	if f.DoNormalize != nil {
		p.Normalize = *f.DoNormalize
	}
	if len(f.ImageMean) == 3 {
		copy(p.Mean[:], f.ImageMean)
	}
	if len(f.ImageStd) == 3 {
		copy(p.Std[:], f.ImageStd)
	}

	w, h := p.OutputSize()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("cannot derive a fixed input size (resize %dx%d, shortest_edge %d, crop %dx%d)",
			p.Width, p.Height, p.ShortestEdge, p.CropWidth, p.CropHeight)
	}
	return p, nil
}

// parseSize accepts a bare integer or a {height,width}/{shortest_edge} object.
func parseSize(raw json.RawMessage) (sizeSpec, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return sizeSpec{Height: n, Width: n}, nil
	}
	var s sizeSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return sizeSpec{}, err
	}
	if s.ShortestEdge <= 0 && (s.Height <= 0 || s.Width <= 0) {
		return sizeSpec{}, fmt.Errorf("missing height/width or shortest_edge")
	}
	return s, nil
}

// OutputSize is the spatial size of the tensor produced by Pixels.
func (p *Preprocessor) OutputSize() (width, height int) {
	if p.CenterCrop {
		return p.CropWidth, p.CropHeight
	}
	if p.ShortestEdge > 0 {
		return p.ShortestEdge, p.ShortestEdge
	}
	return p.Width, p.Height
}

// Pixels converts img to RGB, resizes, crops and normalizes it into a
// 3xHxW float32 slice in channel-major order.
func (p *Preprocessor) Pixels(img image.Image) []float32 {
	rgb := toRGB(img)
	resized := p.resize(rgb)

	outW, outH := p.OutputSize()
	b := resized.Bounds()
	x0 := b.Min.X + (b.Dx()-outW)/2
	y0 := b.Min.Y + (b.Dy()-outH)/2

	plane := outW * outH
	out := make([]float32, 3*plane)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			i := resized.PixOffset(x0+x, y0+y)
			px := resized.Pix[i : i+3 : i+3]
			for c := 0; c < 3; c++ {
				v := float32(px[c])
				if p.Rescale {
					v *= p.RescaleFactor
				}
				if p.Normalize {
					v = (v - p.Mean[c]) / p.Std[c]
				}
				out[c*plane+y*outW+x] = v
			}
		}
	}
	return out
}

func (p *Preprocessor) resize(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := p.Width, p.Height
	if p.ShortestEdge > 0 {
		w, h = scaleShortestEdge(b.Dx(), b.Dy(), p.ShortestEdge)
	}
	if p.CenterCrop {
		// never crop past the resized image
		if w < p.CropWidth {
			w = p.CropWidth
		}
		if h < p.CropHeight {
			h = p.CropHeight
		}
	}
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interpolator(p.Resample).Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func scaleShortestEdge(w, h, edge int) (int, int) {
	if w <= 0 || h <= 0 {
		return edge, edge
	}
	if w <= h {
		return edge, max(1, int(float64(h)*float64(edge)/float64(w)+0.5))
	}
	return max(1, int(float64(w)*float64(edge)/float64(h)+0.5)), edge
}

func interpolator(resample int) draw.Interpolator {
	switch resample {
	case ResampleNearest:
		return draw.NearestNeighbor
	case ResampleBilinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// toRGB flattens any image into an opaque RGBA copy. Alpha is discarded
// rather than composited, so colour values are taken unpremultiplied.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[di+0] = src.Pix[si+0]
				dst.Pix[di+1] = src.Pix[si+1]
				dst.Pix[di+2] = src.Pix[si+2]
				dst.Pix[di+3] = 0xff
				si += 4
				di += 4
			}
		}
		return dst
	}

	for y := 0; y < b.Dy(); y++ {
		di := dst.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.Pix[di+0] = c.R
			dst.Pix[di+1] = c.G
			dst.Pix[di+2] = c.B
			dst.Pix[di+3] = 0xff
			di += 4
		}
	}
	return dst
}
