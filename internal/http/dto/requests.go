package dto

type CreateEscrowRequest struct {
	Client            string `json:"client,omitempty"` // defaults to the authenticated address
	Freelancer        string `json:"freelancer"`       // address or *.ton name
	TotalInstallments int    `json:"total_installments,omitempty"`
}

type FundEscrowRequest struct {
	Token  string `json:"token,omitempty"` // empty means native TON
	Amount int64  `json:"amount"`          // base units
	TxHash string `json:"tx_hash,omitempty"`
}

type SignatureReleaseRequest struct {
	Freelancer string `json:"freelancer"`
	Amount     int64  `json:"amount"`
	Nonce      int64  `json:"nonce"`
	Signature  string `json:"signature"` // hex
}

type LogTransactionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	TxRef  string `json:"tx_ref,omitempty"`
}

type BridgeQuoteRequest struct {
	DestinationChain string `json:"destination_chain"`
	ToAddress        string `json:"to_address"`
}

type SetNoteRequest struct {
	Note map[string]any `json:"note"`
}
