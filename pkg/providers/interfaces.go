package providers

import (
	"errors"

	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"
)

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client

// Failure classes for a single lookup. They are logged and suppressed at the
// fetcher boundary.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNetwork         = errors.New("network failure")
	ErrBadResponse     = errors.New("bad response")
	ErrDecode          = errors.New("decode failure")
)
