package mixer

import "math"

// PanKind tags which variant a PanMode holds.
type PanKind uint8

const (
	// PanBalance is a single balance knob in [-1,1]: -1 hard left, 0
	// center, +1 hard right.
	PanBalance PanKind = iota
	// PanStereo independently pans the left and right input channels,
	// each in [-1,1], letting them be spread, narrowed, or swapped.
	PanStereo
)

// PanMode is a closed sum type: Balance(P) or Stereo(L, R).
type PanMode struct {
	Kind PanKind
	P    float32 // used when Kind == PanBalance
	L, R float32 // used when Kind == PanStereo
}

// Balance builds a Balance(p) pan mode.
func Balance(p float32) PanMode {
	return PanMode{Kind: PanBalance, P: p}
}

// Stereo builds a Stereo(l, r) pan mode.
func Stereo(l, r float32) PanMode {
	return PanMode{Kind: PanStereo, L: l, R: r}
}

const sqrt2 = float32(math.Sqrt2)

// balanceGains returns the (left-channel-gain, right-channel-gain) pair
// for Balance(p) at the given volume: (cos(theta), sin(theta)) *
// volume * sqrt2, theta = (p+1)*pi/4.
func balanceGains(p, volume float32) (l, r float32) {
	theta := float64(p+1) * math.Pi / 4
	l = float32(math.Cos(theta)) * volume * sqrt2
	r = float32(math.Sin(theta)) * volume * sqrt2
	return l, r
}

// stereoMatrix returns the 2x2 stereo pan matrix for Stereo(l, r) at the
// given volume: l' = in_l*ll + in_r*rl; r' = in_l*lr + in_r*rr.
func stereoMatrix(l, r, volume float32) (ll, rl, lr, rr float32) {
	thetaL := float64(l+1) * math.Pi / 4
	thetaR := float64(r+1) * math.Pi / 4
	ll = float32(math.Cos(thetaL)) * volume
	lr = float32(math.Sin(thetaL)) * volume
	rl = float32(math.Cos(thetaR)) * volume
	rr = float32(math.Sin(thetaR)) * volume
	return ll, rl, lr, rr
}

// applyPan applies mode at the given volume (and, if inverted, with
// negated gain coefficients) to audio in place. audio is interleaved
// stereo.
func applyPan(audio []float32, mode PanMode, volume float32, inverted bool) {
	sign := float32(1)
	if inverted {
		sign = -1
	}

	switch mode.Kind {
	case PanBalance:
		l, r := balanceGains(mode.P, volume)
		l, r = l*sign, r*sign
		for i := 0; i+1 < len(audio); i += 2 {
			audio[i] *= l
			audio[i+1] *= r
		}
	case PanStereo:
		ll, rl, lr, rr := stereoMatrix(mode.L, mode.R, volume)
		ll, rl, lr, rr = ll*sign, rl*sign, lr*sign, rr*sign
		for i := 0; i+1 < len(audio); i += 2 {
			in0, in1 := audio[i], audio[i+1]
			audio[i] = in0*ll + in1*rl
			audio[i+1] = in0*lr + in1*rr
		}
	}
}
