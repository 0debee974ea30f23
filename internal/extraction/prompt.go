package extraction

import (
	"strings"

	"google.golang.org/genai"
)

// DefaultContextHint is sent when the user gives no context of their own.
const DefaultContextHint = "Relevé Bancaire Standard"

// DefaultModelName is the Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

func buildPrompt(contextHint string) string {
	var b strings.Builder
	b.WriteString("You are an expert financial data extraction engine.\n")
	b.WriteString("Analyze the attached PDF bank statement page(s).\n\n")
	b.WriteString("Extract ALL financial transactions found in the table.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Ignore headers, footers, previous balances and summary sections. Only extract line items.\n")
	b.WriteString("2. Dates must be formatted as DD/MM/YYYY.\n")
	b.WriteString("3. Identify if a value is a Debit (money out) or a Credit (money in).\n")
	b.WriteString("4. Return debit/credit as positive numbers in their respective fields. ")
	b.WriteString("If a transaction is a debit, 'debit' is the number and 'credit' is null. If credit, 'credit' is the number and 'debit' is null.\n")
	b.WriteString("5. The 'label' is the full description text, with extra spaces and newlines cleaned up.\n\n")
	b.WriteString("Additional Context from user: ")
	b.WriteString(contextHint)
	b.WriteString("\n")
	return b.String()
}

// transactionSchema constrains the model to an array of statement lines.
func transactionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date":   {Type: genai.TypeString, Description: "Transaction date in DD/MM/YYYY"},
				"label":  {Type: genai.TypeString, Description: "Description or label of the transaction"},
				"debit":  {Type: genai.TypeNumber, Description: "Debit amount (positive number) or null if credit"},
				"credit": {Type: genai.TypeNumber, Description: "Credit amount (positive number) or null if debit"},
			},
			Required: []string{"date", "label"},
		},
	}
}
