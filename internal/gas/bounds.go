package gas

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"simpleweb3/internal/config"
	"simpleweb3/internal/units"

	"github.com/ethereum/go-ethereum/params"
)

// Direction of a single step or a held button
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// presetMargin is the distance of LOW and FAST from the limit bounds
const presetMargin = 5_000

var ErrNoEstimate = errors.New("no gas estimate available yet")

// Bounds constrain the gas limit
type Bounds struct {
	Min  uint64 `json:"min"`
	Max  uint64 `json:"max"`
	Step uint64 `json:"step"`
}

// Clamp returns v, or the nearest bound when v lies outside.
func (b Bounds) Clamp(v uint64) uint64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Next moves v one step in dir and clamps.
func (b Bounds) Next(v uint64, dir Direction) uint64 {
	if dir == Down {
		if v < b.Min+b.Step {
			return b.Min
		}
		return b.Clamp(v - b.Step)
	}
	return b.Clamp(v + b.Step)
}

// FeeBounds constrain the priority fee, in wei
type FeeBounds struct {
	Min  *big.Int `json:"min"`
	Max  *big.Int `json:"max"`
	Step *big.Int `json:"step"`
}

// Clamp returns a copy of v, or of the nearest bound when v lies outside. nil clamps to Min.
func (b FeeBounds) Clamp(v *big.Int) *big.Int {
	switch {
	case v == nil || v.Cmp(b.Min) < 0:
		return new(big.Int).Set(b.Min)
	case v.Cmp(b.Max) > 0:
		return new(big.Int).Set(b.Max)
	default:
		return new(big.Int).Set(v)
	}
}

// Next moves v one step in dir and clamps.
func (b FeeBounds) Next(v *big.Int, dir Direction) *big.Int {
	if v == nil {
		v = b.Min
	}
	n := new(big.Int).Set(v)
	if dir == Down {
		n.Sub(n, b.Step)
	} else {
		n.Add(n, b.Step)
	}
	return b.Clamp(n)
}

// NewBounds reads the gas limit bounds from config.
func NewBounds(cfg config.Gas) Bounds {
	return Bounds{Min: cfg.MinLimit, Max: cfg.MaxLimit, Step: cfg.LimitStep}
}

// NewFeeBounds converts the GWEI priority bounds from config to wei.
func NewFeeBounds(cfg config.Gas) (FeeBounds, error) {
	var (
		fb  FeeBounds
		err error
	)
	if fb.Min, err = gweiFloat(cfg.MinPriorityGwei); err != nil {
		return FeeBounds{}, fmt.Errorf("min_priority_gwei: %w", err)
	}
	if fb.Max, err = gweiFloat(cfg.MaxPriorityGwei); err != nil {
		return FeeBounds{}, fmt.Errorf("max_priority_gwei: %w", err)
	}
	if fb.Step, err = gweiFloat(cfg.PriorityStepGwei); err != nil {
		return FeeBounds{}, fmt.Errorf("priority_step_gwei: %w", err)
	}
	return fb, nil
}

func gweiFloat(g float64) (*big.Int, error) {
	return units.GweiToWei(strconv.FormatFloat(g, 'f', -1, 64))
}

// MaxFee is base + priority. nil operands count as zero.
func MaxFee(base, priority *big.Int) *big.Int {
	out := new(big.Int)
	if base != nil {
		out.Add(out, base)
	}
	if priority != nil {
		out.Add(out, priority)
	}
	return out
}

// GasPreset names a quick-select gas limit
type GasPreset string

const (
	PresetLow  GasPreset = "low"
	PresetAvg  GasPreset = "avg"
	PresetFast GasPreset = "fast"
	PresetEst  GasPreset = "est"
)

// Preset resolves p against the bounds. PresetEst returns the last estimate, clamped.
func (b Bounds) Preset(p GasPreset, lastEstimate uint64) (uint64, error) {
	switch GasPreset(strings.ToLower(string(p))) {
	case PresetLow:
		return b.Clamp(b.Min + presetMargin), nil
	case PresetAvg:
		return b.Clamp((b.Min + b.Max) / 2), nil
	case PresetFast:
		if b.Max < presetMargin {
			return b.Min, nil
		}
		return b.Clamp(b.Max - presetMargin), nil
	case PresetEst:
		if lastEstimate == 0 {
			return 0, ErrNoEstimate
		}
		return b.Clamp(lastEstimate), nil
	default:
		return 0, fmt.Errorf("unknown gas preset %q", p)
	}
}

// PriorityPreset names a quick-select priority fee
type PriorityPreset string

const (
	PrioritySafe  PriorityPreset = "safe"
	PriorityBoost PriorityPreset = "boost"
	PriorityMax   PriorityPreset = "max"
)

// Preset resolves p to a clamped priority fee in wei.
func (b FeeBounds) Preset(p PriorityPreset) (*big.Int, error) {
	switch PriorityPreset(strings.ToLower(string(p))) {
	case PrioritySafe:
		return b.Clamp(big.NewInt(2 * params.GWei)), nil
	case PriorityBoost:
		return b.Clamp(big.NewInt(5 * params.GWei)), nil
	case PriorityMax:
		return new(big.Int).Set(b.Max), nil
	default:
		return nil, fmt.Errorf("unknown priority preset %q", p)
	}
}
