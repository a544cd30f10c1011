package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// maxDecodedBytes caps decompressed bodies when the request sets no limit.
const maxDecodedBytes = 16 << 20

var gzipMagic = []byte{0x1f, 0x8b}

// decodeBody undoes a Content-Encoding the transport left in place. Setting
// Accept-Encoding by hand (as browser-like scraping headers do) disables the
// transport's transparent gzip, and br is never handled by net/http.
// Decoded output larger than limit fails with ErrBodyTooLarge.
func decodeBody(encoding string, body []byte, limit int) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "gzip", "x-gzip":
		// resty inflates gzip itself when it sees the header.
		if !bytes.HasPrefix(body, gzipMagic) {
			return body, nil
		}
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// servers disagree on whether deflate means zlib-wrapped or raw.
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			r = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			r = fr
		}
	default:
		return body, nil
	}

	if limit <= 0 {
		limit = maxDecodedBytes
	}
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", encoding, err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: decoded %s body over %d bytes", ErrBodyTooLarge, encoding, limit)
	}
	return out, nil
}
