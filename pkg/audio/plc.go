package audio

import "math/rand/v2"

// concealAmplitude is the peak amplitude of generated comfort noise, in
// 16-bit PCM units. 32 is roughly -60 dBFS — audible continuity without
// audible content.
const concealAmplitude = 32

// ConcealLoss synthesises a comfort-noise frame to mask a missing or
// corrupt packet. The result always has the full interleaved sample count
// for the given format — concealment never returns a short frame, so
// playout cadence is preserved.
func ConcealLoss(cfg Config) []int16 {
	pcm := make([]int16, cfg.SamplesPerFrame())
	for i := range pcm {
		pcm[i] = int16(rand.IntN(2*concealAmplitude+1) - concealAmplitude)
	}
	return pcm
}
