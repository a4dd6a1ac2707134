// pkg/invoice/sequence.go

package invoice

import (
	"strconv"
	"strings"
)

// NextNumber suggests the next invoice number: one more than the largest
// number found among the digits of the existing keys. Keys without digits
// are ignored.
func NextNumber(keys []string) int {
	max := 0
	for _, k := range keys {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, k)
		if digits == "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}
