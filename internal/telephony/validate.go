package telephony

import "github.com/twilio/twilio-go/client"

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks webhook signatures against the auth token.
type SignatureValidator struct {
	v client.RequestValidator
}

// NewSignatureValidator returns a validator for authToken.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{v: client.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the public URL and form params.
func (s *SignatureValidator) Valid(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return s.v.Validate(url, params, signature)
}
