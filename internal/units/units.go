package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Decimals of the named units
const (
	WeiDecimals      = 0
	GweiDecimals     = 9
	EtherDecimals    = 18
	LamportsDecimals = 0
	SolDecimals      = 9

	maxDecimals = 77
)

// Conversion modes accepted by Convert
const (
	ModeEthToWei      = "ETH2WEI"
	ModeWeiToEth      = "WEI2ETH"
	ModeHexToDec      = "HEX2DEC"
	ModeDecToHex      = "DEC2HEX"
	ModeSolToLamports = "SOL2LAMPORTS"
	ModeLamportsToSol = "LAMPORTS2SOL"
	ModeCustom        = "CUSTOM"
)

var (
	ErrEmptyInput   = errors.New("empty input")
	ErrInvalidInput = errors.New("invalid number")
	ErrPrecision    = errors.New("more fractional digits than the unit allows")
	ErrUnknownUnit  = errors.New("unknown unit")
	ErrUnknownMode  = errors.New("unknown conversion mode")
)

var unitDecimals = map[string]int{
	"wei":      WeiDecimals,
	"gwei":     GweiDecimals,
	"ether":    EtherDecimals,
	"eth":      EtherDecimals,
	"lamports": LamportsDecimals,
	"sol":      SolDecimals,
}

// Request describes one conversion. From, To and Decimals are used by ModeCustom only;
// Decimals applies to whichever side is named "custom".
type Request struct {
	Mode     string `json:"mode"`
	Input    string `json:"input"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
}

// Convert runs the conversion named by r.Mode and returns the bare result.
func Convert(r Request) (string, error) {
	in := strings.TrimSpace(r.Input)
	if in == "" {
		return "", ErrEmptyInput
	}

	switch strings.ToUpper(r.Mode) {
	case ModeEthToWei:
		return rescale(in, EtherDecimals, WeiDecimals)
	case ModeWeiToEth:
		return rescale(in, WeiDecimals, EtherDecimals)
	case ModeSolToLamports:
		return rescale(in, SolDecimals, LamportsDecimals)
	case ModeLamportsToSol:
		return rescale(in, LamportsDecimals, SolDecimals)
	case ModeHexToDec:
		v, err := ParseHex(in)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	case ModeDecToHex:
		v, ok := new(big.Int).SetString(in, 10)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidInput, in)
		}
		return FormatHex(v), nil
	case ModeCustom:
		from, err := decimalsFor(r.From, r.Decimals)
		if err != nil {
			return "", err
		}
		to, err := decimalsFor(r.To, r.Decimals)
		if err != nil {
			return "", err
		}
		return rescale(in, from, to)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, r.Mode)
	}
}

func decimalsFor(unit string, custom int) (int, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "custom" {
		if custom < 0 || custom > maxDecimals {
			return 0, fmt.Errorf("decimals must be between 0 and %d", maxDecimals)
		}
		return custom, nil
	}
	d, ok := unitDecimals[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return d, nil
}

// rescale parses s as an amount of a unit with fromDec decimals and renders it in a unit with toDec decimals.
func rescale(s string, fromDec, toDec int) (string, error) {
	base, err := ParseUnits(s, fromDec)
	if err != nil {
		return "", err
	}
	return FormatUnits(base, toDec), nil
}

// ParseUnits parses a non-negative decimal string into base units with the given decimals.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyInput
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has %d, max %d", ErrPrecision, s, len(frac), decimals)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string with trailing fractional zeros trimmed.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if decimals > 0 {
		if len(digits) <= decimals {
			digits = strings.Repeat("0", decimals-len(digits)+1) + digits
		}
		whole, frac := digits[:len(digits)-decimals], strings.TrimRight(digits[len(digits)-decimals:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// ParseHex parses a hex string with an optional 0x/0X prefix.
func ParseHex(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty hex", ErrInvalidInput)
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}
	return v, nil
}

// FormatHex renders v as 0x followed by uppercase hex digits.
func FormatHex(v *big.Int) string {
	if v.Sign() < 0 {
		return "-0x" + strings.ToUpper(new(big.Int).Neg(v).Text(16))
	}
	return "0x" + strings.ToUpper(v.Text(16))
}

// GweiToWei converts a gwei amount such as "1.5" to wei.
func GweiToWei(s string) (*big.Int, error) {
	return ParseUnits(s, GweiDecimals)
}

// WeiToGwei renders wei as gwei.
func WeiToGwei(v *big.Int) string {
	return FormatUnits(v, GweiDecimals)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
