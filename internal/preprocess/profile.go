package preprocess

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Profile selects the transform steps for one backend's input expectations.
// Every step is deterministic and idempotent, so applying a profile twice
// yields a pixel-identical result; the zero Profile is the identity.
type Profile struct {
	// MaxDim bounds the longest side; images are never upscaled above it.
	// MinDim upscales images whose longest side falls below it. Zero
	// disables either bound.
	MaxDim int
	MinDim int

	Grayscale bool
	Denoise   bool // iterative despeckle, run to a fixed point
	Contrast  bool // linear stretch to full range
	Binarize  bool // Otsu threshold, implies grayscale
}

// Zero reports whether the profile is the identity transform.
func (p Profile) Zero() bool {
	return p == Profile{}
}

// Apply runs the profile's steps in order. It is a pure function of the
// input image and profile.
func Apply(img image.Image, p Profile) image.Image {
	if p.Zero() {
		return img
	}
	out := resizeToBound(img, p.MaxDim, p.MinDim)
	if p.Grayscale || p.Denoise || p.Contrast || p.Binarize {
		g := toGray(out)
		if p.Denoise {
			g = despeckle(g)
		}
		if p.Contrast {
			g = stretchContrast(g)
		}
		if p.Binarize {
			g = binarize(g)
		}
		return g
	}
	return out
}

// resizeToBound scales the image so its longest side fits [minDim, maxDim].
// Images already inside the bounds pass through untouched.
func resizeToBound(img image.Image, maxDim, minDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest == 0 {
		return img
	}

	target := 0
	if maxDim > 0 && longest > maxDim {
		target = maxDim
	} else if minDim > 0 && longest < minDim {
		target = minDim
	}
	if target == 0 {
		return img
	}

	scale := float64(target) / float64(longest)
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if w >= h {
		nw = target
	} else {
		nh = target
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		// Keep only compact images so the pixel-slice passes below can
		// treat Pix as w*h contiguous bytes.
		if g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
			return g
		}
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}

const despeckleMaxPasses = 16

// despeckle clamps every pixel into the value range of its eight
// neighbors, repeating until the image stops changing. At the fixed point
// no pixel is a strict local extremum, a property preserved by the
// monotone contrast and threshold steps that may follow, which keeps the
// whole profile idempotent.
func despeckle(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return g
	}
	cur := make([]uint8, len(g.Pix))
	copy(cur, g.Pix)
	next := make([]uint8, len(cur))

	for pass := 0; pass < despeckleMaxPasses; pass++ {
		copy(next, cur)
		changed := false
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				lo, hi := uint8(255), uint8(0)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						v := cur[(y+dy)*g.Stride+(x+dx)]
						if v < lo {
							lo = v
						}
						if v > hi {
							hi = v
						}
					}
				}
				v := cur[y*g.Stride+x]
				if v > hi {
					next[y*g.Stride+x] = hi
					changed = true
				} else if v < lo {
					next[y*g.Stride+x] = lo
					changed = true
				}
			}
		}
		cur, next = next, cur
		if !changed {
			break
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	copy(out.Pix, cur)
	return out
}

// stretchContrast linearly maps the occupied value range onto [0, 255].
// An image already spanning the full range, or a flat image, is unchanged.
func stretchContrast(g *image.Gray) *image.Gray {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == 0 && hi == 255 || lo >= hi {
		return g
	}
	out := image.NewGray(g.Bounds())
	span := int(hi) - int(lo)
	for i, v := range g.Pix {
		out.Pix[i] = uint8((int(v) - int(lo)) * 255 / span)
	}
	return out
}

// binarize applies Otsu's threshold.
func binarize(g *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return g
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}
	var sumB, wB float64
	threshold := 0
	best := -1.0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}

	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if int(v) > threshold {
			out.Pix[i] = 255
		}
	}
	return out
}
