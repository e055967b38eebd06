package compression

import (
	"bytes"
	"testing"
)

func TestForPath(t *testing.T) {
	tests := map[string]string{
		"backup.json.zst": ".zst",
		"backup.json.GZ":  ".gz",
		"backup.json":     "",
	}
	for path, ext := range tests {
		if got := ForPath(path).Extension(); got != ext {
			t.Errorf("ForPath(%q) = %q, want %q", path, got, ext)
		}
	}
}

func TestCodecsRestoreContent(t *testing.T) {
	data := bytes.Repeat([]byte(`{"name":"Home","sections":[]}`), 64)
	for _, c := range []Compressor{ZstdCompressor{}, GzipCompressor{}} {
		packed, err := c.Compress(data)
		if err != nil {
			t.Fatalf("%T compress: %v", c, err)
		}
		if len(packed) >= len(data) {
			t.Errorf("%T did not shrink repetitive input: %d >= %d", c, len(packed), len(data))
		}
		out, err := c.Decompress(packed)
		if err != nil || !bytes.Equal(out, data) {
			t.Errorf("%T round trip failed: %v", c, err)
		}
	}
}
