// Package compression provides the streaming codecs used for snapshot
// archives: gzip and zstd from klauspost/compress and lz4 from pierrec/lz4.
package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/docseal/docseal/pkg/errclass"
)

// Codec names a compression algorithm.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// Level is a codec-independent compression level.
type Level string

const (
	LevelFast    Level = "fast"
	LevelDefault Level = "default"
	LevelMax     Level = "max"
)

// Compressor wraps writers with the configured codec.
type Compressor struct {
	Codec Codec
	Level Level
}

// New creates a compressor. Both names are the config's enumerations.
func New(codec, level string) (*Compressor, error) {
	c := &Compressor{Codec: Codec(strings.ToLower(codec)), Level: Level(strings.ToLower(level))}
	if c.Level == "" {
		c.Level = LevelDefault
	}
	switch c.Codec {
	case CodecNone, CodecGzip, CodecZstd, CodecLZ4:
	default:
		return nil, errclass.ErrConfigMalformed.WithMessagef("invalid compression codec: %s (must be none, gzip, zstd or lz4)", codec)
	}
	switch c.Level {
	case LevelFast, LevelDefault, LevelMax:
	default:
		return nil, errclass.ErrConfigMalformed.WithMessagef("invalid compression level: %s (must be fast, default or max)", level)
	}
	return c, nil
}

// IsEnabled returns true if compression is enabled.
func (c *Compressor) IsEnabled() bool {
	return c.Codec != CodecNone
}

// String returns "codec/level".
func (c *Compressor) String() string {
	if !c.IsEnabled() {
		return string(CodecNone)
	}
	return fmt.Sprintf("%s/%s", c.Codec, c.Level)
}

// ArchiveName returns the archive file name for the codec.
func (c *Compressor) ArchiveName() string {
	return ArchiveName(c.Codec)
}

// ArchiveName returns the archive file name used for codec.
func ArchiveName(codec Codec) string {
	switch codec {
	case CodecGzip:
		return "archive.tar.gz"
	case CodecZstd:
		return "archive.tar.zst"
	case CodecLZ4:
		return "archive.tar.lz4"
	default:
		return "archive.tar"
	}
}

// NewWriter wraps w. Closing the returned writer flushes the codec but
// does not close w.
func (c *Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c.Codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecGzip:
		level := gzip.DefaultCompression
		switch c.Level {
		case LevelFast:
			level = gzip.BestSpeed
		case LevelMax:
			level = gzip.BestCompression
		}
		return gzip.NewWriterLevel(w, level)
	case CodecZstd:
		level := zstd.SpeedDefault
		switch c.Level {
		case LevelFast:
			level = zstd.SpeedFastest
		case LevelMax:
			level = zstd.SpeedBestCompression
		}
		return zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	case CodecLZ4:
		level := lz4.Level5
		switch c.Level {
		case LevelFast:
			level = lz4.Fast
		case LevelMax:
			level = lz4.Level9
		}
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(level)); err != nil {
			return nil, fmt.Errorf("configure lz4: %w", err)
		}
		return zw, nil
	}
	return nil, errclass.ErrConfigMalformed.WithMessagef("invalid compression codec: %s", c.Codec)
}

// NewReader wraps r with the decoder for codec.
func NewReader(codec Codec, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecGzip:
		return gzip.NewReader(r)
	case CodecZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, errclass.ErrConfigMalformed.WithMessagef("invalid compression codec: %s", codec)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
