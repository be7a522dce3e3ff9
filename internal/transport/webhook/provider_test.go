package webhook

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderPayload_Vonage(t *testing.T) {
	t.Run("inbound_shape", func(t *testing.T) {
		body := `{"from":{"number":"5511999990000"},"message":{"content":{"text":"quero cerveja"}}}`
		r := httptest.NewRequest("POST", "/webhook/vonage", strings.NewReader(body))

		msg, err := parseProviderPayload("vonage", r)
		require.NoError(t, err)
		assert.Equal(t, "wa:5511999990000", msg.Key)
		assert.Equal(t, "quero cerveja", msg.Text)
	})

	t.Run("legacy_msisdn_shape", func(t *testing.T) {
		body := `{"msisdn":"5511888880000","text":"oi"}`
		r := httptest.NewRequest("POST", "/webhook/vonage", strings.NewReader(body))

		msg, err := parseProviderPayload("vonage", r)
		require.NoError(t, err)
		assert.Equal(t, "wa:5511888880000", msg.Key)
		assert.Equal(t, "oi", msg.Text)
	})

	t.Run("missing_sender", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/vonage", strings.NewReader(`{"text":"oi"}`))
		_, err := parseProviderPayload("vonage", r)
		assert.Error(t, err)
	})

	t.Run("bad_json", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/vonage", strings.NewReader("{"))
		_, err := parseProviderPayload("vonage", r)
		assert.Error(t, err)
	})
}

func TestParseProviderPayload_Twilio(t *testing.T) {
	form := url.Values{}
	form.Set("From", "whatsapp:+5511999990000")
	form.Set("Body", "2")
	r := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	msg, err := parseProviderPayload("twilio", r)
	require.NoError(t, err)
	assert.Equal(t, "wa:whatsapp:+5511999990000", msg.Key)
	assert.Equal(t, "2", msg.Text)
}

func TestParseProviderPayload_Unknown(t *testing.T) {
	r := httptest.NewRequest("POST", "/webhook/nexmo", strings.NewReader("{}"))
	_, err := parseProviderPayload("nexmo", r)
	assert.ErrorContains(t, err, "unknown provider")
}
