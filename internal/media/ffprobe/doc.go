// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result give access to the primary video stream, frame
// rate and frame count, duration parsing, and bitrate extraction. The webcam
// QC adapter uses them to compare a session video with the recording.
package ffprobe
