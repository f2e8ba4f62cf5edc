// Package compress implements the cascade backend for still images.
//
// JPEG, PNG, GIF, and BMP are encoded in-process; WebP and AVIF are delegated
// to the cwebp and avifenc binaries through an Executor so tests can stub
// them. Inputs are decoded once per call, optionally downscaled with a
// Catmull-Rom filter, and re-encoded. Every call starts from the artifact it is
// given; the backend keeps no state between calls.
package compress
