package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const signatureField = "signature"

// Signer produces HMAC-SHA256 signatures over the canonical form of a
// parameter set: keys sorted, joined as key=value with '&'.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func Canonicalize(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == signatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(params[k]))
	}
	return b.String()
}

func (s *Signer) Sign(params map[string]any) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over every field except "signature".
func (s *Signer) Verify(payload map[string]any) bool {
	got, ok := payload[signatureField].(string)
	if !ok || got == "" {
		return false
	}
	want := s.Sign(payload)
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprint(v)
}
