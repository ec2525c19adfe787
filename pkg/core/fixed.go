package core

// Fixed-point format shared by the timing rules, the lookup tables and the
// weight dependence. All magnitudes handed to the weight dependence use it.
const (
	// FixedPointShift is the number of fractional bits.
	FixedPointShift = 11

	// One is the fixed-point representation of 1.0. It is also the modulus of
	// the fixed-point random draw and the size of every inverse-CDF table.
	One int32 = 1 << FixedPointShift
)

// Mul16x16 multiplies two 16-bit fixed-point values and rescales the product.
// Both operands are truncated to int16 first, matching the signed halfword
// multiply the target uses.
func Mul16x16(a, b int32) int32 {
	return (int32(int16(a)) * int32(int16(b))) >> FixedPointShift
}

// SaturateInt16 clamps v into the int16 range.
func SaturateInt16(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
