// Package ident composes and splits full student numbers.
//
// A full student number is a four character year prefix followed by the
// user-entered sequence, with no separator.
package ident

const YearLength = 4

func Compose(year, suffix string) string {
	return year + suffix
}

// Decompose splits a full student number into its year prefix and suffix.
// Numbers shorter than the year prefix have no year: the whole string is
// returned as the suffix.
func Decompose(full string) (year, suffix string) {
	if len(full) < YearLength {
		return "", full
	}
	return full[:YearLength], full[YearLength:]
}

// Year returns only the year prefix of a full student number.
func Year(full string) string {
	year, _ := Decompose(full)
	return year
}
