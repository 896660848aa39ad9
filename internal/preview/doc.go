// Package preview cuts short, re-encoded MP3 clips out of stored beats.
//
// Extraction shells out to ffmpeg twice: once to decode the source to
// interleaved signed 16-bit PCM at a fixed rate and channel count, and once to
// encode the truncated PCM as MP3 with bit-exact flags and no metadata, so the
// same input and duration always yield the same bytes. Clips live in memory
// only; nothing is written back to storage.
package preview
