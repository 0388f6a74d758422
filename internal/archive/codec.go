package archive

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Codec compresses archive blobs into strings the KV primitive can hold.
// Codec failures surface as STORAGE-typed errors at the archiver level.
type Codec interface {
	Compress(v interface{}) (string, error)
	Decompress(s string, v interface{}) error
}

// GzipCodec is the default codec: JSON, gzipped, base64-wrapped so the
// result stays a valid string value.
type GzipCodec struct {
	// Level is the gzip compression level (default: gzip.DefaultCompression).
	Level int
}

// NewGzipCodec returns a codec at the default compression level.
func NewGzipCodec() *GzipCodec {
	return &GzipCodec{Level: gzip.DefaultCompression}
}

// Compress implements Codec.
func (c *GzipCodec) Compress(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive blob: %w", err)
	}

	var buf bytes.Buffer
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return "", fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("failed to compress archive blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish compression: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress implements Codec.
func (c *GzipCodec) Decompress(s string, v interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("failed to decode archive blob: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to open gzip reader: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to decompress archive blob: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse archive blob: %w", err)
	}
	return nil
}
