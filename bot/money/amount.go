// Package money converts between human-entered decimal amounts and the
// payout ledger's integer base-unit representation.
package money

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var amountRe = regexp.MustCompile(`^([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// ValidAmount reports whether the input is a strictly-positive plain decimal
// number. Signs, exponents and grouping separators are rejected.
func ValidAmount(input string) bool {
	s := strings.TrimSpace(input)
	if !amountRe.MatchString(s) {
		return false
	}
	r, ok := new(big.Rat).SetString(s)
	return ok && r.Sign() > 0
}

// Scale converts a human-entered decimal amount into an integer base-unit
// string using the asset's decimal precision: round-half-up(human * 10^decimals).
func Scale(human string, decimals int) (string, error) {
	s := strings.TrimSpace(human)
	if !ValidAmount(s) {
		return "", fmt.Errorf("money: invalid amount %q", human)
	}
	if decimals < 0 {
		return "", fmt.Errorf("money: negative decimals %d", decimals)
	}

	r, _ := new(big.Rat).SetString(s)
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(pow))

	// Round half-up: floor(r + 1/2) for the positive values ValidAmount admits.
	num := new(big.Int).Set(r.Num())
	den := r.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Lsh(rem, 1).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.String(), nil
}

// FormatUnits renders an integer base-unit amount as a human decimal string,
// trimming trailing fractional zeros.
func FormatUnits(raw string, decimals int) (string, error) {
	units, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return "", fmt.Errorf("money: invalid base-unit amount %q", raw)
	}
	if decimals < 0 {
		return "", fmt.Errorf("money: negative decimals %d", decimals)
	}
	if decimals == 0 {
		return units.String(), nil
	}

	neg := units.Sign() < 0
	abs := new(big.Int).Abs(units)
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, pow, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := fmt.Sprintf("%0*s", decimals, frac.String())
		digits = strings.TrimRight(digits, "0")
		out += "." + digits
	}
	if neg {
		out = "-" + out
	}
	return out, nil
}
