package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// ServiceKeyMiddleware authenticates the marketplace backend on the internal
// event routes. Only the hex sha256 of the key is configured.
type ServiceKeyMiddleware struct {
	headerName string
	keyHash    []byte
}

func NewServiceKeyMiddleware(headerName, keyHash string) *ServiceKeyMiddleware {
	return &ServiceKeyMiddleware{
		headerName: headerName,
		keyHash:    []byte(keyHash),
	}
}

func (m *ServiceKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing service key")
			return
		}
		if len(m.keyHash) == 0 || subtle.ConstantTimeCompare([]byte(HashKey(key)), m.keyHash) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid service key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
