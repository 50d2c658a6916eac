package matching

import (
	"fmt"
	"strings"

	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// SystemInstruction is the oracle's system message for a ranking run.
const SystemInstruction = "You are a financial reconciliation assistant that matches " +
	"purchase receipts to bank transactions. Always respond with valid JSON only."

// BuildPrompt composes the ranking prompt from a receipt summary and an
// enumerated, identifier-bearing list of candidate transactions.
func BuildPrompt(receipt *storage.Receipt, candidates []*storage.Transaction, maxMatches int) string {
	var txList strings.Builder
	for i, tx := range candidates {
		txList.WriteString(fmt.Sprintf("%d. id=%s date=%s description=%q amount=%s\n",
			i+1, tx.ID, tx.Date.Format("2006-01-02"), tx.Description, formatCents(tx.AmountCents)))
	}

	return fmt.Sprintf(`Match this receipt to the most likely bank transactions.

Receipt:
- Merchant: %s
- Date: %s
- Total: %s
- Tax/GST: %s

Candidate transactions (negative amounts are debits):
%s
Matching heuristics:
1. Date proximity: prefer same-day matches, then within 2-3 days
2. Amount similarity: the receipt total should match the transaction amount,
   allowing small variance for card fees or rounding
3. Merchant name: fuzzy-match the receipt merchant against the transaction
   description (bank descriptions are often abbreviated or uppercased)
4. A purchase receipt normally pairs with a debit (negative amount)

Return ONLY a JSON array of at most %d candidates, best first, with this
exact shape:
[
  {"transaction_id": "...", "confidence": 0.95, "reason": "same day, exact amount, merchant matches"}
]

confidence must be a number between 0 and 1. Return [] if nothing plausibly matches.`,
		receipt.Merchant,
		receipt.ReceiptDate.Format("2006-01-02"),
		formatCents(receipt.TotalCents),
		formatCents(receipt.TaxCents),
		txList.String(),
		maxMatches,
	)
}

// formatCents renders integer cents as a signed dollar string
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
