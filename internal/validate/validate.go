package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxCodeLen matches the product_code column width.
const MaxCodeLen = 64

// JAN/EAN barcodes and internal SKUs
var reCode = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Code validates a product code: trimmed, 1-64 chars of [A-Za-z0-9_-].
func Code(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reCode.MatchString(s)
}

// HeaderID validates a purchase id as generated by uuid.NewString.
func HeaderID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 36 {
		return s, false
	}
	if _, err := uuid.Parse(s); err != nil {
		return s, false
	}
	return s, true
}

func Quantity(n int64) bool { return n > 0 }

func UnitPrice(n int64) bool { return n >= 0 }

// MulAdd returns acc + price*qty and false when either step overflows int64.
// price and qty must already be non-negative.
func MulAdd(acc, price, qty int64) (sub, total int64, ok bool) {
	if price != 0 && qty > math.MaxInt64/price {
		return 0, 0, false
	}
	sub = price * qty
	if acc > math.MaxInt64-sub {
		return 0, 0, false
	}
	return sub, acc + sub, true
}

// Limit parses a listing limit, falling back to def and clamping to [1, max].
func Limit(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}
