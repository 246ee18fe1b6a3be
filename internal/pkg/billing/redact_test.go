package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "**** **** **** 1111", MaskCardNumber("4111111111111111"))
	assert.Equal(t, "**** **** **** 1111", MaskCardNumber("4111 1111 1111 1111"))
	assert.Equal(t, "****", MaskCardNumber("123"))
	assert.Equal(t, "****", MaskCardNumber(""))
}

func TestSanitizePaymentMetadata(t *testing.T) {
	in := map[string]string{
		"card_number": "4242424242424242",
		"CVV":         "123",
		"cvc":         "999",
		"order_id":    "ord_42",
	}
	out := SanitizePaymentMetadata(in)

	assert.Equal(t, "**** **** **** 4242", out["card_number"])
	assert.Equal(t, "***", out["CVV"])
	assert.Equal(t, "***", out["cvc"])
	assert.Equal(t, "ord_42", out["order_id"])

	// The input map stays untouched.
	assert.Equal(t, "4242424242424242", in["card_number"])
}

func TestSanitizePaymentMetadataNil(t *testing.T) {
	assert.Nil(t, SanitizePaymentMetadata(nil))
}
