// Package eeg turns the EEG stream of a recording into a referenced,
// annotated, filtered and decomposed signal, and computes the share of data
// free of blink and muscle artifacts.
//
// Pipeline.Run is the entry point. Each heavy stage sits behind a small
// interface (Referencer, Detector, Decomposer) with a native implementation
// so the stages can be swapped or stubbed:
//
//   - RobustReference: line-noise removal, noisy-channel detection,
//     median-based robust reference and bad-channel interpolation.
//   - BlinkDetector and MuscleDetector: artifact annotations.
//   - FastICA: PCA-reduced independent component decomposition.
//
// Cleaned signals are cached per subject by ArtifactCache, keyed by a hash
// of the recording plus the pipeline version, so repeat runs skip
// referencing entirely.
package eeg
