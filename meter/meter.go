// Package meter knows how to read time signatures and where the
// strong beats fall. Beats are quarter-note beats throughout, so 6/8
// has a capacity of 3.0.
package meter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jsphweid/choirgen/util"
)

// Parse splits a time signature like "3/4" into numerator and
// denominator. Request validation goes through here; internal callers
// use BeatsPerMeasure which tolerates bad input.
func Parse(timeSignature string) (top, bottom int, err error) {
	parts := strings.Split(timeSignature, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time signature %q", timeSignature)
	}
	top, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || top <= 0 {
		return 0, 0, fmt.Errorf("invalid time signature %q", timeSignature)
	}
	bottom, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || bottom <= 0 {
		return 0, 0, fmt.Errorf("invalid time signature %q", timeSignature)
	}
	return top, bottom, nil
}

// BeatsPerMeasure returns the measure capacity in quarter-note
// beats, falling back to 4 for unparseable signatures.
func BeatsPerMeasure(timeSignature string) float64 {
	top, bottom, err := Parse(timeSignature)
	if err != nil {
		return 4
	}
	return float64(top) * (4.0 / float64(bottom))
}

// IsStrongBeat reports whether a position (in beats from the start of
// the measure) is metrically strong. 4/4 is strong on beats 0 and 2,
// 6/8 on the two dotted-quarter pulses, everything else on every
// integer beat.
func IsStrongBeat(position float64, timeSignature string) bool {
	top, bottom, err := Parse(timeSignature)
	if err != nil {
		top, bottom = 4, 4
	}
	quarterPosition := position * (float64(bottom) / 4.0)
	if top == 4 {
		return util.AlmostZero(math.Mod(quarterPosition, 2))
	}
	if top == 6 && bottom == 8 {
		return util.AlmostZero(position) || util.AlmostEqual(position, 1.5)
	}
	return util.AlmostZero(math.Mod(quarterPosition, 1))
}
