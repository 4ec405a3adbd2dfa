package jsonvalue

import (
	"math/big"
	"strings"
)

// decimal is a number literal in normalized form: the value is
// (-1)^neg * digits * 10^exp, where digits has no leading or trailing zeros.
// Zero has empty digits. The exponent is unbounded so that literals beyond
// the reach of big.Rat still order exactly.
type decimal struct {
	neg    bool
	digits string
	exp    *big.Int
}

// parseDecimal normalizes a literal already accepted by isNumberLiteral
func parseDecimal(lit string) decimal {
	d := decimal{exp: new(big.Int)}
	s := lit
	if strings.HasPrefix(s, "-") {
		d.neg = true
		s = s[1:]
	}
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e := strings.TrimPrefix(s[i+1:], "+")
		if _, ok := d.exp.SetString(e, 10); !ok {
			d.exp.SetInt64(0)
		}
		s = s[:i]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	mant := intPart + frac
	d.exp.Sub(d.exp, big.NewInt(int64(len(frac))))

	mant = strings.TrimLeft(mant, "0")
	trimmed := strings.TrimRight(mant, "0")
	d.exp.Add(d.exp, big.NewInt(int64(len(mant)-len(trimmed))))
	d.digits = trimmed
	if d.digits == "" {
		d.neg = false
		d.exp.SetInt64(0)
	}
	return d
}

func (d decimal) sign() int {
	switch {
	case d.digits == "":
		return 0
	case d.neg:
		return -1
	}
	return 1
}

// isInt reports whether d has no fractional part
func (d decimal) isInt() bool {
	return d.digits == "" || d.exp.Sign() >= 0
}

// cmp returns -1, 0 or 1 comparing d and o exactly
func (d decimal) cmp(o decimal) int {
	sd, so := d.sign(), o.sign()
	if sd != so {
		if sd < so {
			return -1
		}
		return 1
	}
	if sd == 0 {
		return 0
	}
	mag := d.cmpAbs(o)
	if sd < 0 {
		return -mag
	}
	return mag
}

func (d decimal) cmpAbs(o decimal) int {
	// Position of the leading digit decides first.
	ld := new(big.Int).Add(d.exp, big.NewInt(int64(len(d.digits))))
	lo := new(big.Int).Add(o.exp, big.NewInt(int64(len(o.digits))))
	if c := ld.Cmp(lo); c != 0 {
		return c
	}
	// Same magnitude: digit strings compare lexically, and a strict prefix is
	// smaller because trailing digits are non-zero.
	return strings.Compare(d.digits, o.digits)
}
