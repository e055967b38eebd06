// Package compression wraps content exports in the codec named by their file extension.
package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Extension() string
}

// ForPath picks the codec from the file name: .zst, .gz, or none.
func ForPath(path string) Compressor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return ZstdCompressor{}
	case ".gz":
		return GzipCompressor{}
	}
	return Identity{}
}

type Identity struct{}

func (Identity) Compress(data []byte) ([]byte, error)   { return data, nil }
func (Identity) Decompress(data []byte) ([]byte, error) { return data, nil }
func (Identity) Extension() string                      { return "" }

type GzipCompressor struct{}

func (GzipCompressor) Extension() string { return ".gz" }

func (GzipCompressor) Compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	writer := gzip.NewWriter(&b)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

type ZstdCompressor struct{}

func (ZstdCompressor) Extension() string { return ".zst" }

func (ZstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

func (ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
