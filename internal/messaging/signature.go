package messaging

import (
	"fmt"
	"net/http"
	"strings"

	twclient "github.com/twilio/twilio-go/client"
)

// SignatureValidator checks X-Twilio-Signature on inbound webhooks.
type SignatureValidator struct {
	validator twclient.RequestValidator
	baseURL   string
}

// NewSignatureValidator validates with authToken. When baseURL is set it
// replaces the scheme and host seen by the server, which differ behind a proxy.
func NewSignatureValidator(authToken, baseURL string) *SignatureValidator {
	return &SignatureValidator{
		validator: twclient.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Valid parses the form of r and reports whether its signature matches.
func (v *SignatureValidator) Valid(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, values := range r.PostForm {
		if len(values) > 0 {
			params[k] = values[0]
		}
	}
	return v.validator.Validate(v.signedURL(r), params, signature)
}

func (v *SignatureValidator) signedURL(r *http.Request) string {
	if v.baseURL != "" {
		return v.baseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
