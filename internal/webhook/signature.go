package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"

	"dialerctl/pkg/apperrors"
)

// VerifySignature checks a provider-supplied signature over the
// canonical callback URL plus the sorted form-encoded body (spec §4.G:
// "every callback must carry a provider-supplied signature over the
// canonical URL plus the sorted form-encoded body").
//
// This is the one ambient concern in this module built on the
// standard library rather than a pack dependency: no example repo
// performs webhook HMAC verification, and crypto/hmac + crypto/sha1
// is the direct, minimal implementation of the scheme the spec
// describes (mirroring Twilio's own X-Twilio-Signature algorithm,
// which this system's telephony provider is modeled on).
func VerifySignature(secret, canonicalURL string, form url.Values, providedSignature string) bool {
	if secret == "" {
		return false
	}
	expected := computeSignature(secret, canonicalURL, form)
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}

func computeSignature(secret, canonicalURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(canonicalURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RequireSignature wraps VerifySignature, returning a typed error when
// validation is enabled but misconfigured (spec §7: "Missing
// configuration while validation is enabled -> InternalError").
func RequireSignature(enabled bool, secret, canonicalURL string, form url.Values, providedSignature string) *apperrors.AppError {
	if !enabled {
		return nil
	}
	if secret == "" {
		return apperrors.Internal("signature validation enabled but no secret configured", nil)
	}
	if !VerifySignature(secret, canonicalURL, form, providedSignature) {
		return apperrors.New(apperrors.CodeSignature, "webhook signature mismatch")
	}
	return nil
}
