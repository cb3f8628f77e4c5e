package domain

// TransferRequest describes one money movement between two accounts. The
// reference id is the caller-chosen identity of the whole transfer: a repeated
// request with the same reference id attaches to the existing transfer instead
// of starting a second one.
type TransferRequest struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"reference_id"`
}

func (r TransferRequest) Validate() error {
	if r.Sender == "" || r.Recipient == "" || r.ReferenceID == "" {
		return ErrInvalidName
	}
	if r.Amount < 1 {
		return ErrInvalidAmount
	}
	return nil
}
