package mathhelp

import "math"

func Pow2(n uint) uint {
	return 1 << n
}

// RoundTo rounds f to the given number of decimals, half away from zero.
func RoundTo(f float64, decimals int) float64 {
	shift := math.Pow10(decimals)
	return math.Round(f*shift) / shift
}
