package messaging

import "strings"

const whatsappPrefix = "whatsapp:"

// CanonicalPhone reduces a transport address or storefront phone to its digits.
// "whatsapp:+52 1 55-1234-5678" and "+5215512345678" both become "5215512345678",
// which is the user id everywhere else.
func CanonicalPhone(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(strings.ToLower(value), whatsappPrefix)
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppAddress formats a user id as a Twilio WhatsApp address.
func WhatsAppAddress(userID string) string {
	digits := CanonicalPhone(userID)
	if digits == "" {
		return ""
	}
	return whatsappPrefix + "+" + digits
}
