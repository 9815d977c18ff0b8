package domain

import "fmt"

// Side is the market operation a quote is built for.
// Sell fixes the taker amount and maximizes proceeds, Buy fixes the maker amount and minimizes cost.
type Side uint8

const (
	SideSell Side = iota
	SideBuy
)

func (s Side) String() string {
	switch s {
	case SideSell:
		return "sell"
	case SideBuy:
		return "buy"
	default:
		return "UNKNOWN"
	}
}

// ShouldMinimize reports whether a lower path output is better.
func (s Side) ShouldMinimize() bool {
	return s == SideBuy
}

func ParseSide(raw string) (Side, error) {
	switch raw {
	case "sell", "Sell", "SELL", "ExactIn":
		return SideSell, nil
	case "buy", "Buy", "BUY", "ExactOut":
		return SideBuy, nil
	default:
		return SideSell, fmt.Errorf("unknown side: %q", raw)
	}
}

// Source identifies a liquidity venue.
type Source string

const (
	SourceUniswap   Source = "Uniswap"
	SourceUniswapV2 Source = "Uniswap_V2"
	SourceEth2Dai   Source = "Eth2Dai"
	SourceKyber     Source = "Kyber"
	SourceNative    Source = "Native"
)

func (s Source) String() string {
	return string(s)
}
