package deb

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/blakesmith/ar"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// countingWriter wraps an io.Writer and counts the bytes written.
// It is typically used to calculate the size of a file or archive entry
// as it is being written.
type countingWriter struct {
	w io.Writer
	n int64
}

// Write writes p to the underlying io.Writer and increments the byte count.
func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// addBufferToAr writes a named byte slice as a file entry to the AR archive.
// It constructs the AR header with mode 0644 and the given timestamp.
func addBufferToAr(w *ar.Writer, name string, body []byte, modTime time.Time) error {
	header := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// Decompress wraps r with the decompressor matching the extension of name
// (.gz, .xz, .bz2, .lzma). Names without a known extension are returned as is.
// The returned closer must be called once reading is done.
func Decompress(name string, r io.Reader) (io.Reader, io.Closer, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", name, err)
		}
		return gzr, gzr, nil
	case strings.HasSuffix(name, ".xz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", name, err)
		}
		return xzr, nopCloser{}, nil
	case strings.HasSuffix(name, ".lzma"):
		lr, err := lzma.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", name, err)
		}
		return lr, nopCloser{}, nil
	case strings.HasSuffix(name, ".bz2"):
		return bzip2.NewReader(r), nopCloser{}, nil
	case strings.HasSuffix(name, ".zst"):
		return nil, nil, fmt.Errorf("unsupported compression: %s", name)
	}
	return r, nopCloser{}, nil
}

// stripSignature returns the signed body of a clearsigned document,
// or the content unchanged when it is not signed. The signature itself
// is not verified.
func stripSignature(content []byte) []byte {
	if !bytes.HasPrefix(bytes.TrimSpace(content), []byte("-----BEGIN PGP SIGNED MESSAGE-----")) {
		return content
	}
	block, _ := clearsign.Decode(content)
	if block == nil {
		return content
	}
	return block.Plaintext
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
