package deposit

import "time"

// DepositResponse is the API view of a deposit.
type DepositResponse struct {
	Network               string    `json:"network"`
	SourceTxHash          string    `json:"source_tx_hash"`
	SourceFromAddress     string    `json:"source_from_address"`
	SourceBlockNumber     uint64    `json:"source_block_number"`
	Amount                string    `json:"amount"`
	DestinationAddress    string    `json:"destination_address"`
	State                 State     `json:"state"`
	DestinationTxHash     string    `json:"destination_tx_hash,omitempty"`
	NetworkFeeAmount      string    `json:"network_fee_amount,omitempty"`
	BusinessFeeAmount     string    `json:"business_fee_amount,omitempty"`
	BusinessFeePercentage string    `json:"business_fee_percentage,omitempty"`
	ErrorMessage          string    `json:"error_message,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DepositPage is one page of a wallet's deposit history.
type DepositPage struct {
	Deposits []*DepositResponse `json:"deposits"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
	Total    int                `json:"total"`
}

// NetworkResponse is the API view of a scan state.
type NetworkResponse struct {
	Name             string    `json:"name"`
	Network          string    `json:"network"`
	MonitorAddress   string    `json:"monitor_address"`
	LastScannedBlock uint64    `json:"last_scanned_block"`
	AccumulatedFee   string    `json:"accumulated_fee"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FeePaymentResponse is the API view of a treasury payout.
type FeePaymentResponse struct {
	Network           string    `json:"network"`
	DestinationTxHash string    `json:"destination_tx_hash"`
	Amount            string    `json:"amount"`
	PaidAt            time.Time `json:"paid_at"`
}

// Response converts d to its API view.
func (d *Deposit) Response() *DepositResponse {
	r := &DepositResponse{
		Network:               d.ScannerName,
		SourceTxHash:          d.SourceTxHash,
		SourceFromAddress:     d.SourceFromAddress,
		SourceBlockNumber:     d.SourceBlockNumber,
		Amount:                d.Amount,
		DestinationAddress:    d.DestinationAddress,
		State:                 d.State,
		DestinationTxHash:     d.DestinationTxHash,
		ErrorMessage:          d.ErrorMessage,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
	// fees are fixed when processing starts but only reported once paid
	if d.State == StateProcessed {
		r.NetworkFeeAmount = d.NetworkFeeAmount
		r.BusinessFeeAmount = d.BusinessFeeAmount
		r.BusinessFeePercentage = d.BusinessFeePercentage
	}
	return r
}

// Response converts s to its API view.
func (s *ScanState) Response() *NetworkResponse {
	return &NetworkResponse{
		Name:             s.Name,
		Network:          s.Network,
		MonitorAddress:   s.MonitorAddress,
		LastScannedBlock: s.LastScannedBlock,
		AccumulatedFee:   s.AccumulatedFee,
		UpdatedAt:        s.UpdatedAt,
	}
}

// Response converts p to its API view.
func (p *FeePayment) Response() *FeePaymentResponse {
	return &FeePaymentResponse{
		Network:           p.ScannerName,
		DestinationTxHash: p.DestinationTxHash,
		Amount:            p.Amount,
		PaidAt:            p.Time,
	}
}
