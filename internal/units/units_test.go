package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"eth to wei", Request{Mode: ModeEthToWei, Input: "1.5"}, "1500000000000000000"},
		{"eth to wei small", Request{Mode: ModeEthToWei, Input: "0.000000000000000001"}, "1"},
		{"wei to eth", Request{Mode: ModeWeiToEth, Input: "1500000000000000000"}, "1.5"},
		{"wei to eth fraction", Request{Mode: ModeWeiToEth, Input: "42"}, "0.000000000000000042"},
		{"sol to lamports", Request{Mode: ModeSolToLamports, Input: "2.25"}, "2250000000"},
		{"lamports to sol", Request{Mode: ModeLamportsToSol, Input: "1"}, "0.000000001"},
		{"hex to dec", Request{Mode: ModeHexToDec, Input: "0xff"}, "255"},
		{"hex to dec no prefix", Request{Mode: ModeHexToDec, Input: "FF"}, "255"},
		{"dec to hex", Request{Mode: ModeDecToHex, Input: "255"}, "0xFF"},
		{"dec to hex large", Request{Mode: ModeDecToHex, Input: "18446744073709551616"}, "0x10000000000000000"},
		{"custom ether to gwei", Request{Mode: ModeCustom, Input: "1", From: "ether", To: "gwei"}, "1000000000"},
		{"custom decimals", Request{Mode: ModeCustom, Input: "123456", From: "wei", To: "custom", Decimals: 6}, "0.123456"},
		{"mode case insensitive", Request{Mode: "eth2wei", Input: "1"}, "1000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		err  error
	}{
		{"empty", Request{Mode: ModeEthToWei, Input: "  "}, ErrEmptyInput},
		{"letters", Request{Mode: ModeEthToWei, Input: "abc"}, ErrInvalidInput},
		{"negative", Request{Mode: ModeEthToWei, Input: "-1"}, ErrInvalidInput},
		{"wei fraction", Request{Mode: ModeWeiToEth, Input: "1.5"}, ErrPrecision},
		{"too precise", Request{Mode: ModeSolToLamports, Input: "0.0000000001"}, ErrPrecision},
		{"bad hex", Request{Mode: ModeHexToDec, Input: "0xzz"}, ErrInvalidInput},
		{"bad dec", Request{Mode: ModeDecToHex, Input: "12a"}, ErrInvalidInput},
		{"unknown unit", Request{Mode: ModeCustom, Input: "1", From: "btc", To: "wei"}, ErrUnknownUnit},
		{"unknown mode", Request{Mode: "FOO", Input: "1"}, ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "0.1", "123.456789", "1000000"} {
		v, err := ParseUnits(s, EtherDecimals)
		require.NoError(t, err)
		assert.Equal(t, s, FormatUnits(v, EtherDecimals))
	}
}

func TestGwei(t *testing.T) {
	v, err := GweiToWei("0.1")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000), v)
	assert.Equal(t, "2", WeiToGwei(big.NewInt(2_000_000_000)))
}
