package dto

// CreateReceiptRequest registers an uploaded receipt for processing
type CreateReceiptRequest struct {
	Merchant    string `json:"merchant,omitempty"`
	ReceiptDate string `json:"receipt_date,omitempty"` // YYYY-MM-DD
	TotalCents  int64  `json:"total_cents,omitempty"`
}

// OCRCallbackRequest is the payload the external OCR pipeline posts back
type OCRCallbackRequest struct {
	Merchant    string  `json:"merchant"`
	ReceiptDate string  `json:"receipt_date"` // YYYY-MM-DD
	TotalCents  int64   `json:"total_cents"`
	TaxCents    int64   `json:"tax_cents"`
	OCRData     string  `json:"ocr_data,omitempty"`
	Confidence  float64 `json:"confidence"`
	Success     bool    `json:"success"`
}

// CreateTransactionRequest is one imported statement row
type CreateTransactionRequest struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category,omitempty"`
}

// UpdateTransactionRequest is a manual edit; nil fields are left unchanged
type UpdateTransactionRequest struct {
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
}

// BulkApproveRequest sets the confidence floor for bulk approval.
// A zero/omitted threshold uses the default (0.80).
type BulkApproveRequest struct {
	Threshold float64 `json:"threshold,omitempty"`
}
