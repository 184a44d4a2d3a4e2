// ABOUTME: Sample decoding package
// ABOUTME: Reads encoded samples back out of channel areas and wire data
// Package decode reverses the sample encoding performed by package encode.
//
// Decoding undoes byte order, flips the sign bit back for unsigned formats,
// reinterprets float bit patterns and scales integers by 1/maxval, so a
// buffer written by encode.Sine reads back as sin(phase) within the
// format's quantization error.
//
// Example:
//
//	decoder, err := decode.NewPCM(cfg)
//	samples, err := decoder.Decode(chunk)
package decode
