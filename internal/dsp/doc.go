// Package dsp holds the signal helpers shared by the EEG pipeline and the
// physiological modality adapters: zero-phase biquad filters, Welch power
// spectra and analytic envelopes on top of gonum's FFT, peak picking, and
// robust summary statistics.
//
// Every function works on plain []float64 slices of one channel and never
// retains its input.
package dsp
