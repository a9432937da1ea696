// Package filesystem opens bulk import sources on local disk.
package filesystem

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

var (
	// ErrNotRegularFile indicates the path names a directory or device.
	ErrNotRegularFile = errors.New("filesystem: not a regular file")
	// ErrBadCompression indicates a gzip source with a corrupt header.
	ErrBadCompression = errors.New("filesystem: bad gzip header")
)

var gzipMagic = []byte{0x1f, 0x8b}

const readBufferSize = 256 * 1024

// Source is an opened import file. Reads return decompressed bytes; the
// checksum covers the bytes as stored on disk.
type Source struct {
	Path       string
	Size       int64
	Compressed bool

	file   *os.File
	raw    io.Reader
	reader io.Reader
	gz     *gzip.Reader
	hash   hash.Hash
}

// Open stats and opens path, detecting gzip compression from the magic bytes.
func Open(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	//nolint:gosec // G304: import path is chosen by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, readBufferSize)
	h := sha256.New()
	s := &Source{
		Path: path,
		Size: info.Size(),
		file: f,
		raw:  io.TeeReader(br, h),
		hash: h,
	}
	s.reader = s.raw

	if magic, err := br.Peek(len(gzipMagic)); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(s.raw)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%s: %w: %w", path, ErrBadCompression, err)
		}
		s.Compressed = true
		s.gz = gz
		s.reader = gz
	}

	return s, nil
}

// Read implements io.Reader over the decompressed content.
func (s *Source) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Checksum consumes whatever is left of the file and returns the hex SHA-256
// of its stored bytes.
func (s *Source) Checksum() (string, error) {
	if _, err := io.Copy(io.Discard, s.raw); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", s.Path, err)
	}
	return hex.EncodeToString(s.hash.Sum(nil)), nil
}

// Close releases the file.
func (s *Source) Close() error {
	var gzErr error
	if s.gz != nil {
		gzErr = s.gz.Close()
	}
	return errors.Join(gzErr, s.file.Close())
}
