// Package analysis extracts frequency content from simulated trajectories.
//
// A dataset is resampled onto a uniform grid, its mean removed and the
// real FFT taken; the dominant frequency is the strongest non-zero bin.
package analysis
