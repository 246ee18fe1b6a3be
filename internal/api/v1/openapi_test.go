package apiv1

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The served OpenAPI document must stay loadable and internally consistent.
func TestOpenAPIDocumentIsValid(t *testing.T) {
	ctx := context.Background()
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(ctx))

	assert.Equal(t, "PayFox API", doc.Info.Title)

	pi := doc.Components.Schemas["PaymentIntentResult"]
	require.NotNil(t, pi)
	assert.Contains(t, pi.Value.Properties, "status")

	for _, path := range []string{
		"/ping",
		"/account",
		"/payments",
		"/payments/refund",
		"/billing/history",
		"/subscriptions",
		"/subscriptions/{id}",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "path %s missing", path)
	}
}
