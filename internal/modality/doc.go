// Package modality computes the per-modality QC metrics that make up one
// report row.
//
// Every modality implements Adapter. Built-in adapters read their stream from
// the opened recording, crop it to the task segment and report shared stream
// statistics plus modality specific measures:
//
//   - eeg: the cleaning pipeline in package eeg
//   - et, ecg, eda, rsp, mic: native signal measures
//   - webcam: the session video inspected with ffprobe
//   - behavior: stimulus marker statistics
//
// Any modality can instead be delegated to an external command (Exec) that
// prints a JSON object. NewRegistry wires the adapters from configuration in
// report order.
package modality
