package security

import (
	"bytes"
	"io"
	"net/http"

	"github.com/glowkart/backend-cart/internal/common"
)

// BodyLimit caps request payload size before the cart handlers decode it.
type BodyLimit struct {
	Max int64
}

// Middleware buffers up to Max bytes of the body and rejects anything larger
// with 413. Handlers downstream see an in-memory body and need no size
// checks of their own.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		// ContentLength -1 means unknown; those fall through to the read.
		if r.ContentLength > b.Max {
			reject(w)
			return
		}

		buf, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
		_ = r.Body.Close()
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "request body could not be read", nil)
			return
		}
		if int64(len(buf)) > b.Max {
			reject(w)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func reject(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the allowed size", nil)
}
