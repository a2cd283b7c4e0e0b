package domain

import (
	"encoding/binary"

	"go.trai.ch/zerr"
)

// EntropyBytes is the number of leading entropy bytes consumed by a reduction.
const EntropyBytes = 8

// DefaultSamplingThreshold samples roughly eight percent of completions.
const DefaultSamplingThreshold = 8

// PercentSampler reduces externally supplied entropy to a value in [1,100] and
// samples a completion for verification when the value is at most Threshold.
// It performs no randomness generation of its own.
type PercentSampler struct {
	Threshold uint8
}

// Reduce reads the first eight bytes little-endian and returns (value mod 100) + 1.
func (p PercentSampler) Reduce(entropy []byte) (uint64, error) {
	if len(entropy) < EntropyBytes {
		return 0, zerr.With(zerr.Wrap(ErrInsufficientEntropy, "cannot reduce entropy"), "bytes", len(entropy))
	}
	v := binary.LittleEndian.Uint64(entropy[:EntropyBytes])
	return v%100 + 1, nil
}

// ShouldVerify returns the sampling decision together with the reduced value.
func (p PercentSampler) ShouldVerify(entropy []byte) (bool, uint64, error) {
	v, err := p.Reduce(entropy)
	if err != nil {
		return false, 0, err
	}
	return v <= uint64(p.Threshold), v, nil
}
