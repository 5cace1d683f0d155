package p2ppicks

import (
	"crypto/md5"
	"fmt"
	"sort"
)

// signRequest computes the request signature the underwriting service
// expects: md5 over "method-action&", the sorted key/value pairs, and the
// shared secret. The api_key parameter must already be present in params.
func signRequest(method, action string, params map[string]string, secret string) string {
	h := md5.New()
	fmt.Fprintf(h, "%s-%s&", method, action)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s%s&", k, params[k])
	}

	fmt.Fprintf(h, "secret%s", secret)
	return fmt.Sprintf("%x", h.Sum(nil))
}
