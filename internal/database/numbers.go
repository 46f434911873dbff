package database

import "fmt"

// NextOrderNumbers allocates count numbers after last. Numbers are the day
// prefix (MMDD) followed by a letter and a digit, rolling A1..A9, B1.. up to
// Z9 and back to A1. The first cup gets the bare number, later cups -2, -3...
func NextOrderNumbers(prefix, last string, count int) []string {
	base := prefix + "A1"
	if last = BaseNumber(last); len(last) >= 2 && len(last) > len(prefix) {
		letter := last[len(last)-2]
		digit := last[len(last)-1]
		switch {
		case letter < 'A' || letter > 'Z' || digit < '1' || digit > '9':
		case digit < '9':
			base = fmt.Sprintf("%s%c%c", prefix, letter, digit+1)
		case letter == 'Z':
			base = prefix + "A1"
		default:
			base = fmt.Sprintf("%s%c1", prefix, letter+1)
		}
	}

	numbers := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if i == 0 {
			numbers = append(numbers, base)
			continue
		}
		numbers = append(numbers, fmt.Sprintf("%s-%d", base, i+1))
	}
	return numbers
}

// DisplayNumber is the short number called out at the counter: the last two
// characters of the base number.
func DisplayNumber(full string) string {
	base := BaseNumber(full)
	if len(base) <= 2 {
		return base
	}
	return base[len(base)-2:]
}
