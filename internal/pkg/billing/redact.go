package billing

import "strings"

// Metadata keys that may carry cardholder data. Values under these keys are
// masked before they reach logs or outbound requests.
var sensitiveMetadataKeys = map[string]bool{
	"card_number": true,
	"cardnumber":  true,
	"pan":         true,
	"cvv":         true,
	"cvc":         true,
	"cvv2":        true,
}

// MaskCardNumber keeps the last four digits and masks the rest. Values too
// short to be a card number are fully masked.
func MaskCardNumber(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 8 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// SanitizePaymentMetadata returns a copy of metadata safe for logging and
// persistence: card numbers keep only their last four digits, card
// verification values are fully masked.
func SanitizePaymentMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		key := strings.ToLower(strings.TrimSpace(k))
		switch {
		case key == "cvv" || key == "cvc" || key == "cvv2":
			out[k] = "***"
		case sensitiveMetadataKeys[key]:
			out[k] = MaskCardNumber(v)
		default:
			out[k] = v
		}
	}
	return out
}
