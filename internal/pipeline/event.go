// internal/pipeline/event.go
package pipeline

// OutcomeEvent is the payload published for every finished attempt.
type OutcomeEvent struct {
	AttemptID string `json:"attempt_id"`
	State     State  `json:"state"`
	TxHash    string `json:"tx_hash,omitempty"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Denom     string `json:"denom"`
	Amount    string `json:"amount"`
	Sequence  uint64 `json:"sequence"`
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace,omitempty"`
	RawLog    string `json:"raw_log,omitempty"`
	Height    int64  `json:"height,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newOutcomeEvent(a *attempt) OutcomeEvent {
	return OutcomeEvent{
		AttemptID: a.out.AttemptID,
		State:     a.out.State,
		TxHash:    a.out.TxHash,
		Sender:    a.rec.Sender,
		Recipient: a.rec.Recipient,
		Denom:     a.rec.Denom,
		Amount:    a.rec.Amount,
		Sequence:  a.rec.Sequence,
		Code:      a.rec.Code,
		Codespace: a.rec.Codespace,
		RawLog:    a.rec.RawLog,
		Height:    a.rec.Height,
		Error:     a.rec.Error,
	}
}
