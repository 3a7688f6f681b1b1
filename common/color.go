package common

import "github.com/chewxy/math32"

// Rec. 709 luma coefficients.
const (
	LumaR float32 = 0.2126
	LumaG float32 = 0.7152
	LumaB float32 = 0.0722
)

// Luma returns the Rec. 709 luma of an RGB triple.
func Luma(r, g, b float32) float32 {
	return LumaR*r + LumaG*g + LumaB*b
}

// HueChromaLightness splits an RGB triple (components in [0,1]) into hue in [0,1), chroma
// (max - min) and lightness ((max + min) / 2). Achromatic colors report hue 0.
//
// Parameters:
//   - r, g, b: the color components
//
// Returns:
//   - h: the hue as a fraction of a full turn
//   - c: the chroma
//   - l: the lightness
func HueChromaLightness(r, g, b float32) (h, c, l float32) {
	maxC := math32.Max(r, math32.Max(g, b))
	minC := math32.Min(r, math32.Min(g, b))
	c = maxC - minC
	l = (maxC + minC) / 2
	if c <= 0 {
		return 0, 0, l
	}
	switch maxC {
	case r:
		h = (g - b) / c
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/c + 2
	default:
		h = (r-g)/c + 4
	}
	h /= 6
	if h >= 1 {
		h -= 1
	}
	return h, c, l
}

// RGBToHSL converts an RGB triple into standard HSL, all values in [0,1].
//
// Parameters:
//   - r, g, b: the color components
//
// Returns:
//   - h: the hue as a fraction of a full turn
//   - s: the HSL saturation
//   - l: the lightness
func RGBToHSL(r, g, b float32) (h, s, l float32) {
	h, c, l := HueChromaLightness(r, g, b)
	den := 1 - math32.Abs(2*l-1)
	if c <= 0 || den <= 0 {
		return h, 0, l
	}
	return h, math32.Min(c/den, 1), l
}

// HSLToRGB converts a hue, chroma and lightness triple back to RGB. Saturation here is the
// chroma of the color (max - min), matching the double cone used by the color cloud grid.
//
// Parameters:
//   - hue: the hue as a fraction of a full turn
//   - saturation: the chroma of the color
//   - lightness: the lightness
//
// Returns:
//   - [3]float32: the RGB color
func HSLToRGB(hue, saturation, lightness float32) [3]float32 {
	maxC := lightness + saturation/2
	minC := lightness - saturation/2
	del := maxC - minC

	deg := 360 * hue
	switch {
	case deg < 60:
		return [3]float32{maxC, minC + del*deg/60, minC}
	case deg < 120:
		return [3]float32{minC + del*(120-deg)/60, maxC, minC}
	case deg < 180:
		return [3]float32{minC, maxC, minC + del*(deg-120)/60}
	case deg < 240:
		return [3]float32{minC, minC + del*(240-deg)/60, maxC}
	case deg < 300:
		return [3]float32{minC + del*(deg-240)/60, minC, maxC}
	default:
		return [3]float32{maxC, minC, minC + del*(360-deg)/60}
	}
}

// HSLToPosition maps a hue, chroma and lightness triple to a point of the color cloud.
// The double cone is inflated onto the unit sphere: lightness runs along Y from -1 to 1 and
// fully saturated colors at lightness 0.5 lie on the unit circle of the XZ plane.
//
// Parameters:
//   - hue: the hue as a fraction of a full turn
//   - saturation: the chroma of the color
//   - lightness: the lightness
//
// Returns:
//   - [3]float32: the position in cloud space
func HSLToPosition(hue, saturation, lightness float32) [3]float32 {
	h := 2 * math32.Pi * hue
	s := saturation
	l := 2*lightness - 1

	a := s + math32.Abs(l)
	b := math32.Sqrt(s*s + l*l)
	if b > 0 {
		n := a / b
		s *= n
		l *= n
	}

	z, x := math32.Sincos(h)
	return [3]float32{x * s, l, -z * s}
}

// RGBToPosition maps an RGB triple to a point of the RGB cube centered on the origin.
func RGBToPosition(r, g, b float32) [3]float32 {
	return [3]float32{1.25 * (r - 0.5), 1.25 * (g - 0.5), 1.25 * (b - 0.5)}
}

// SRGBToLinear decodes one sRGB encoded component.
func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

// LinearToSRGB encodes one linear component with the sRGB transfer function.
func LinearToSRGB(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1/2.4) - 0.055
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
