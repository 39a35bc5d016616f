// Package card holds structural checks on card numbers.
package card

// Valid reports whether number is a non-empty string of digits that passes the
// Luhn checksum. Digits at odd positions from the right are summed as-is,
// digits at even positions are doubled and their digit sum is added.
func Valid(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Last4 returns the last four characters of number, or all of it when shorter.
func Last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
