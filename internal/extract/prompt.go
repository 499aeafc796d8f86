package extract

import "fmt"

const systemPrompt = "You extract structured data from invoices. Reply with a single JSON object and nothing else."

const documentShape = `{
  "fileId": "%s",
  "fileName": "%s",
  "vendor": {
    "name": "string",
    "address": "string",
    "taxId": "string"
  },
  "invoice": {
    "number": "string",
    "date": "YYYY-MM-DD",
    "currency": "string",
    "subtotal": number,
    "taxPercent": number,
    "total": number,
    "poNumber": "string",
    "poDate": "YYYY-MM-DD",
    "lineItems": [
      {
        "description": "string",
        "unitPrice": number,
        "quantity": number,
        "total": number
      }
    ]
  },
  "createdAt": "%s"
}`

func buildPrompt(fileID, fileName, now, text string) string {
	if fileName == "" {
		fileName = fallbackFileName
	}
	shape := fmt.Sprintf(documentShape, fileID, fileName, now)
	return fmt.Sprintf(`Extract invoice data from the following text and return it as a JSON object with this exact structure:
%s

Numbers must be plain JSON numbers without currency symbols. Omit fields that are not present in the text.

Text to extract from:
%s`, shape, text)
}
