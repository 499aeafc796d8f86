package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsCompleteDocument(t *testing.T) {
	doc := `{
		"fileId": "3f1c",
		"fileName": "invoice.pdf",
		"vendor": {"name": "Acme Corporation", "taxId": "12-3456789"},
		"invoice": {
			"number": "INV-2024-001",
			"date": "2024-01-15",
			"subtotal": 7500,
			"lineItems": [{"description": "Web", "unitPrice": 5000, "quantity": 1, "total": 5000}]
		},
		"createdAt": "2024-01-15T00:00:00.000Z"
	}`
	require.NoError(t, Validate([]byte(doc)))
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"vendor name":    `{"fileId":"a","fileName":"b","vendor":{},"invoice":{"number":"1","date":"d"}}`,
		"invoice number": `{"fileId":"a","fileName":"b","vendor":{"name":"v"},"invoice":{"number":"","date":"d"}}`,
		"file id":        `{"fileName":"b","vendor":{"name":"v"},"invoice":{"number":"1","date":"d"}}`,
	}
	for name, doc := range cases {
		assert.Error(t, Validate([]byte(doc)), name)
	}
}

func TestValidateRejectsWrongTypes(t *testing.T) {
	doc := `{"fileId":"a","fileName":"b","vendor":{"name":"v"},
		"invoice":{"number":"1","date":"d","total":"lots","lineItems":[]}}`
	assert.Error(t, Validate([]byte(doc)))

	doc = `{"fileId":"a","fileName":"b","vendor":"acme","invoice":{"number":"1","date":"d"}}`
	assert.Error(t, Validate([]byte(doc)))
}

func TestValidateRejectsNonJSON(t *testing.T) {
	assert.Error(t, Validate([]byte("Sure! Here is the invoice")))
}
