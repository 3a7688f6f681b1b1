package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func assertMatrixInDelta(t *testing.T, want, got Matrix) {
	t.Helper()
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			assert.InDelta(t, want[col][row], got[col][row], 1e-5, "element (%d,%d)", row, col)
		}
	}
}

func TestIdentityIsNeutral(t *testing.T) {
	m := RotX(0.3).Mul(Translate(1, 2, 3))
	assertMatrixInDelta(t, m, IdentityMatrix().Mul(m))
	assertMatrixInDelta(t, m, m.Mul(IdentityMatrix()))
}

func TestAtAndRowReadColumnStorage(t *testing.T) {
	m := Translate(4, 5, 6)
	assert.Equal(t, float32(4), m.At(3, 0))
	assert.Equal(t, float32(6), m.At(3, 2))
	assert.Equal(t, Vec4{4, 5, 6, 1}, m.Row(3))
}

func TestTranslateMovesPoint(t *testing.T) {
	p := Translate(1, -2, 3).Transform(Vec4{1, 1, 1, 1})
	assert.Equal(t, Vec4{2, -1, 4, 1}, p)
}

func TestRotZQuarterTurn(t *testing.T) {
	p := RotZ(math32.Pi / 2).Transform(Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 1, p[1], 1e-6)
	assert.InDelta(t, 0, p[2], 1e-6)
}

func TestMulAppliesLeftOperandFirst(t *testing.T) {
	// scale then translate: the offset is not scaled
	m := Scale(2, 2, 2).Mul(Translate(1, 0, 0))
	p := m.Transform(Vec4{1, 1, 1, 1})
	assert.Equal(t, Vec4{3, 2, 2, 1}, p)

	// translate then scale: the offset is scaled
	m = Translate(1, 0, 0).Mul(Scale(2, 2, 2))
	p = m.Transform(Vec4{1, 1, 1, 1})
	assert.Equal(t, Vec4{4, 2, 2, 1}, p)
}

func TestRotationsComposeToIdentity(t *testing.T) {
	m := RotY(0.7).Mul(RotY(-0.7))
	assertMatrixInDelta(t, IdentityMatrix(), m)
}

func TestAs4x3PacksFirstThreeColumns(t *testing.T) {
	got := Translate(1, 2, 3).As4x3()
	assert.Equal(t, [12]float32{1, 0, 0, 1, 0, 1, 0, 2, 0, 0, 1, 3}, got)
}

func TestDivRoundUp(t *testing.T) {
	assert.Equal(t, uint32(0), DivRoundUp(0, 16))
	assert.Equal(t, uint32(1), DivRoundUp(16, 16))
	assert.Equal(t, uint32(2), DivRoundUp(17, 16))
	assert.Equal(t, uint32(120), DivRoundUp(1920, 16))
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]uint32{}))
	b := SliceToBytes([]uint32{1, 2})
	assert.Len(t, b, 8)
}
