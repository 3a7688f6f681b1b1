package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestHSLToPositionEquatorHasUnitDistance(t *testing.T) {
	for i := 0; i < 12; i++ {
		hue := float32(i) / 12
		p := HSLToPosition(hue, 1, 0.5)
		assert.InDelta(t, 1, math32.Hypot(p[0], p[2]), 1e-5, "hue %v", hue)
		assert.InDelta(t, 0, p[1], 1e-6)
	}
}

func TestHSLToPositionPoles(t *testing.T) {
	white := HSLToPosition(0, 0, 1)
	black := HSLToPosition(0, 0, 0)
	assert.InDelta(t, 1, white[1], 1e-6)
	assert.InDelta(t, -1, black[1], 1e-6)
	assert.InDelta(t, 0, white[0], 1e-6)
}

func TestHSLToRGBPrimaries(t *testing.T) {
	red := HSLToRGB(0, 1, 0.5)
	assert.InDeltaSlice(t, []float32{1, 0, 0}, red[:], 1e-5)

	green := HSLToRGB(1.0/3, 1, 0.5)
	assert.InDeltaSlice(t, []float32{0, 1, 0}, green[:], 1e-4)

	gray := HSLToRGB(0.5, 0, 0.25)
	assert.InDeltaSlice(t, []float32{0.25, 0.25, 0.25}, gray[:], 1e-6)
}

func TestHueChromaLightness(t *testing.T) {
	h, c, l := HueChromaLightness(1, 0, 0)
	assert.InDelta(t, 0, h, 1e-6)
	assert.InDelta(t, 1, c, 1e-6)
	assert.InDelta(t, 0.5, l, 1e-6)

	h, _, _ = HueChromaLightness(0, 0, 1)
	assert.InDelta(t, 2.0/3, h, 1e-5)

	h, c, l = HueChromaLightness(0.4, 0.4, 0.4)
	assert.Zero(t, h)
	assert.Zero(t, c)
	assert.InDelta(t, 0.4, l, 1e-6)
}

func TestRGBToHSLSaturation(t *testing.T) {
	_, s, _ := RGBToHSL(1, 0, 0)
	assert.InDelta(t, 1, s, 1e-6)

	// dark but fully saturated
	_, s, l := RGBToHSL(0.5, 0, 0)
	assert.InDelta(t, 1, s, 1e-6)
	assert.InDelta(t, 0.25, l, 1e-6)

	_, s, _ = RGBToHSL(1, 1, 1)
	assert.Zero(t, s)
}

func TestLumaWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1, Luma(1, 1, 1), 1e-6)
	assert.InDelta(t, LumaG, Luma(0, 1, 0), 1e-6)
}

func TestSRGBTransferRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.001, 0.04, 0.2, 0.5, 0.8, 1} {
		assert.InDelta(t, v, LinearToSRGB(SRGBToLinear(v)), 1e-5)
	}
	assert.InDelta(t, 0.2140, SRGBToLinear(0.5), 1e-3)
}

func TestRectEdges(t *testing.T) {
	r := NewRect(10, 20, 300, 200)
	assert.Equal(t, [4]int32{10, 20, 310, 220}, r.Edges())
	assert.False(t, r.Empty())
	assert.True(t, NewRect(0, 0, 0, 5).Empty())
}
