package webhook

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	form := url.Values{"CallSid": {"CA123"}, "CallStatus": {"completed"}}
	sig := computeSignature("secret", "https://example.com/webhooks/twilio/status", form)
	require.True(t, VerifySignature("secret", "https://example.com/webhooks/twilio/status", form, sig))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	form := url.Values{"CallSid": {"CA123"}}
	sig := computeSignature("secret", "https://example.com/webhooks/twilio/status", form)

	tampered := url.Values{"CallSid": {"CA999"}}
	require.False(t, VerifySignature("secret", "https://example.com/webhooks/twilio/status", tampered, sig))
}

func TestVerifySignatureEmptySecretAlwaysFails(t *testing.T) {
	form := url.Values{"CallSid": {"CA123"}}
	require.False(t, VerifySignature("", "https://example.com/x", form, "anything"))
}

func TestRequireSignatureDisabledSkipsCheck(t *testing.T) {
	err := RequireSignature(false, "", "https://example.com/x", url.Values{}, "bogus")
	require.Nil(t, err)
}

func TestRequireSignatureEnabledMissingSecretIsInternalError(t *testing.T) {
	err := RequireSignature(true, "", "https://example.com/x", url.Values{}, "bogus")
	require.NotNil(t, err)
	require.Equal(t, 500, err.HTTPStatus())
}

func TestRequireSignatureEnabledMismatchIsSignatureError(t *testing.T) {
	err := RequireSignature(true, "secret", "https://example.com/x", url.Values{"a": {"1"}}, "bogus")
	require.NotNil(t, err)
	require.Equal(t, 403, err.HTTPStatus())
}
