// Package sim drives a multi-arm spectrograph exposure-time-calculator
// simulation end to end: it emits flux-calibrated, magnitude-normalized
// template files, enumerates an exposure manifest, invokes the external
// simulator binary once per instrument mode, and stitches the per-arm
// outputs back into continuous spectra with recovered continuum-normalized
// counterparts.
//
// The external simulator is a black box reached through the [Runner]
// interface; only its file contract matters here. All state for one
// invocation lives in an exclusive working directory created by [New] and
// removed by [Pipeline.Close].
package sim
