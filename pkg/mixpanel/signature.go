package mixpanel

import (
	"crypto/md5" //nolint:gosec // md5 is mandated by the remote signing scheme
	"encoding/hex"
	"io"
	"sort"
)

// ComputeSignature returns the lowercase hex MD5 of every key=value pair in byte order of
// the keys, abutted with no separator, followed by secret.
func ComputeSignature(values map[string]string, secret string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := md5.New() //nolint:gosec // see import
	for _, k := range keys {
		_, _ = io.WriteString(h, k)
		_, _ = io.WriteString(h, "=")
		_, _ = io.WriteString(h, values[k])
	}
	_, _ = io.WriteString(h, secret)
	return hex.EncodeToString(h.Sum(nil))
}

// Signature normalizes params and signs them as given. An empty secret selects the
// client's own API secret.
func (c *Client) Signature(params Params, secret string) (string, error) {
	values, err := params.normalize()
	if err != nil {
		return "", err
	}
	if secret == "" {
		secret = c.creds.APISecret
	}
	return ComputeSignature(values, secret), nil
}
