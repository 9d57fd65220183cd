// Package fixtures compresses and loads golden sector fixtures for tests.
//
// Synthesized sectors are mostly null bytes, so a run-length pass before
// gzip shrinks them dramatically: a boot region full of zero padding
// collapses to a handful of runs, and gzip flattens what's left. The
// run-length scheme is RLE8 as used by the BMP file format: a byte occurring
// N >= 2 times is written twice followed by a repeat count of N-2 (capped at
// 255, longer runs split), so a run of up to 257 bytes costs three.
// Single bytes are written through as-is, which makes an exact double the
// pathological case (three bytes for two), irrelevant for sector data.
package fixtures

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// Compress run-length encodes raw and gzips the result. Tests use it to
// build a golden fixture in-process: render the expected bytes, compress
// once, and assert the round trip reproduces them before comparing against
// live output.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(runLengthEncode(raw)); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadCompressed reverses Compress and wraps the decompressed bytes as a
// seekable stream. Callers that only need a byte slice can read it to the
// end instead of seeking.
func LoadCompressed(compressed []byte) (io.ReadWriteSeeker, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	encoded, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	raw, err := runLengthDecode(encoded)
	if err != nil {
		return nil, err
	}
	return bytesextra.NewReadWriteSeeker(raw), nil
}

func runLengthEncode(raw []byte) []byte {
	encoded := make([]byte, 0, len(raw)/4)
	for i := 0; i < len(raw); {
		b := raw[i]
		run := 1
		for i+run < len(raw) && raw[i+run] == b {
			run++
		}
		i += run

		for run >= 2 {
			repeat := run - 2
			if repeat > 255 {
				repeat = 255
			}
			encoded = append(encoded, b, b, byte(repeat))
			run -= repeat + 2
		}
		if run == 1 {
			encoded = append(encoded, b)
		}
	}
	return encoded
}

func runLengthDecode(encoded []byte) ([]byte, error) {
	var raw []byte
	for i := 0; i < len(encoded); {
		b := encoded[i]
		if i+1 < len(encoded) && encoded[i+1] == b {
			if i+2 >= len(encoded) {
				return nil, fmt.Errorf("truncated run at offset %d", i)
			}
			count := 2 + int(encoded[i+2])
			for j := 0; j < count; j++ {
				raw = append(raw, b)
			}
			i += 3
			continue
		}
		raw = append(raw, b)
		i++
	}
	return raw, nil
}
