package providers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	// raster formats accepted from providers and scraped pages
	_ "image/gif"
	_ "image/jpeg"

	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes bounds a single image payload.
	MaxImageBytes = 5 << 20
	// MaxImagePixels bounds the declared canvas of a payload. Decoders
	// allocate the full pixel buffer from the header before reading pixels.
	MaxImagePixels = 4096 * 4096
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// DownloadImage fetches url and decodes the body into a raster image.
func DownloadImage(ctx context.Context, client HTTPClient, url string, headers map[string]string, timeout time.Duration) (image.Image, string, error) {
	body, err := getBody(ctx, client, url, headers, timeout)
	if err != nil {
		return nil, "", err
	}
	return DecodeRaster(body)
}

// getBody performs a bounded GET and classifies transport and status failures.
func getBody(ctx context.Context, client HTTPClient, url string, headers map[string]string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := client.Get(ctx, url, headers, httpclient.WithBodyLimit(MaxImageBytes))
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrNetwork, url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrBadResponse, url, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty body", ErrBadResponse, url)
	}
	return body, nil
}

// DecodeRaster decodes png, jpeg, gif, webp, bmp and ico payloads.
// Vector payloads are rejected.
func DecodeRaster(body []byte) (image.Image, string, error) {
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrDecode)
	}

	mt := mimetype.Detect(body)
	switch {
	case mt.Is("image/svg+xml"):
		return nil, "", fmt.Errorf("%w: vector payload is not a raster image", ErrDecode)
	case mt.Is("image/x-icon"), mt.Is("image/vnd.microsoft.icon"):
		img, err := decodeICO(body)
		if err != nil {
			return nil, "", err
		}
		return img, "ico", nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s payload: %v", ErrDecode, mt.String(), err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s payload: %v", ErrDecode, mt.String(), err)
	}
	return img, format, nil
}

// checkDimensions rejects empty canvases and canvases over MaxImagePixels.
func checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: image declares %dx%d", ErrDecode, w, h)
	}
	if int64(w)*int64(h) > MaxImagePixels {
		return fmt.Errorf("%w: image declares %dx%d, over %d pixels", ErrDecode, w, h, MaxImagePixels)
	}
	return nil
}

type icoEntry struct {
	width, height int
	bpp           uint16
	size, offset  uint32
}

// decodeICO picks the largest entry of an ICO container and decodes it.
// Entries are either an embedded PNG or a headerless BMP DIB.
func decodeICO(body []byte) (image.Image, error) {
	if len(body) < 6 {
		return nil, fmt.Errorf("%w: truncated ico header", ErrDecode)
	}
	count := int(binary.LittleEndian.Uint16(body[4:6]))
	if count == 0 || len(body) < 6+count*16 {
		return nil, fmt.Errorf("%w: ico directory truncated", ErrDecode)
	}

	var best *icoEntry
	for i := 0; i < count; i++ {
		raw := body[6+i*16 : 6+(i+1)*16]
		e := icoEntry{
			width:  int(raw[0]),
			height: int(raw[1]),
			bpp:    binary.LittleEndian.Uint16(raw[6:8]),
			size:   binary.LittleEndian.Uint32(raw[8:12]),
			offset: binary.LittleEndian.Uint32(raw[12:16]),
		}
		if e.width == 0 {
			e.width = 256
		}
		if e.height == 0 {
			e.height = 256
		}
		if uint64(e.offset)+uint64(e.size) > uint64(len(body)) {
			continue
		}
		if best == nil || e.width*e.height > best.width*best.height ||
			(e.width*e.height == best.width*best.height && e.bpp > best.bpp) {
			entry := e
			best = &entry
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: ico has no readable entries", ErrDecode)
	}

	data := body[best.offset : best.offset+best.size]
	if bytes.HasPrefix(data, pngMagic) {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: ico png entry: %v", ErrDecode, err)
		}
		if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: ico png entry: %v", ErrDecode, err)
		}
		return img, nil
	}
	return decodeDIB(data)
}

// decodeDIB wraps an ICO bitmap entry in a BMP file header. ICO DIBs store
// twice the real height (XOR image followed by the AND mask).
func decodeDIB(data []byte) (image.Image, error) {
	if len(data) < 40 {
		return nil, fmt.Errorf("%w: ico bitmap entry truncated", ErrDecode)
	}
	headerSize := binary.LittleEndian.Uint32(data[0:4])
	if headerSize < 40 || int(headerSize) > len(data) {
		return nil, fmt.Errorf("%w: unsupported ico bitmap header", ErrDecode)
	}

	dib := append([]byte(nil), data...)
	width := int32(binary.LittleEndian.Uint32(dib[4:8]))
	height := int32(binary.LittleEndian.Uint32(dib[8:12]))
	if err := checkDimensions(absInt(width), absInt(height/2)); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(dib[8:12], uint32(height/2))

	bpp := binary.LittleEndian.Uint16(dib[14:16])
	paletteSize := 0
	if bpp <= 8 {
		colors := int(binary.LittleEndian.Uint32(dib[32:36]))
		if colors == 0 {
			colors = 1 << bpp
		}
		paletteSize = colors * 4
	}

	fileHeader := make([]byte, 14)
	fileHeader[0], fileHeader[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(fileHeader[2:6], uint32(14+len(dib)))
	binary.LittleEndian.PutUint32(fileHeader[10:14], uint32(14+int(headerSize)+paletteSize))

	img, err := bmp.Decode(bytes.NewReader(append(fileHeader, dib...)))
	if err != nil {
		return nil, fmt.Errorf("%w: ico bitmap entry: %v", ErrDecode, err)
	}
	return img, nil
}

func absInt(v int32) int {
	if v < 0 {
		return -int(v)
	}
	return int(v)
}
