// Package dto chứa các input/output cấu trúc cho domain Campaign.
package dto

// CampaignStartInput là body của POST /campaigns/start
type CampaignStartInput struct {
	InvoiceID string `json:"invoiceId" validate:"required,len=24,hexadecimal"`
}

// CampaignStopInput là body của POST /campaigns/:id/stop
type CampaignStopInput struct {
	// Reason ghi chú lý do dừng (optional, chỉ để log)
	Reason string `json:"reason,omitempty"`
}
