package pipeline

import (
	"context"
	"time"

	"github.com/altuslabsxyz/txpipe/internal/journal"
	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// Reconciliation is the answer to a tx status query.
type Reconciliation struct {
	Result *network.BroadcastResult

	// Record is the journal record that submitted the tx, if any.
	Record *journal.Record

	// Updated is true when Record was rewritten with the ledger's answer.
	Updated bool
}

// Reconcile queries txHash and, when j holds an unsettled record for it,
// records the ledger's answer. This settles attempts whose broadcast outcome
// was unknown. j may be nil.
func Reconcile(ctx context.Context, b network.Broadcaster, j journal.Journal, txHash string) (*Reconciliation, error) {
	res, err := b.QueryTx(ctx, txHash)
	if err != nil {
		return nil, err
	}
	r := &Reconciliation{Result: res}
	if j == nil {
		return r, nil
	}

	hash := res.TxHash
	if hash == "" {
		hash = txHash
	}
	rec, err := j.FindByHash(ctx, hash)
	if journal.IsNotFound(err) {
		return r, nil
	}
	if err != nil {
		return r, err
	}
	r.Record = rec
	if settled(rec) {
		return r, nil
	}

	rec.State = string(StateSuccess)
	rec.Error = ""
	if !res.Success {
		rec.State = string(StateFailed)
		rec.Error = (&network.LedgerRejectedError{
			Code:      res.Code,
			Codespace: res.Codespace,
			RawLog:    res.RawLog,
			TxHash:    hash,
		}).Error()
	}
	rec.Code = res.Code
	rec.Codespace = res.Codespace
	rec.RawLog = res.RawLog
	rec.Height = res.Height
	rec.UpdatedAt = time.Now()
	if err := j.Update(ctx, rec); err != nil {
		return r, err
	}
	r.Updated = true
	return r, nil
}

// settled reports whether rec already holds the ledger's answer. A success
// without a height only passed the mempool check in sync or async mode. A
// failed record without a response code failed in transport and may still
// have been included.
func settled(rec *journal.Record) bool {
	switch State(rec.State) {
	case StateRejected:
		return true
	case StateSuccess:
		return rec.Height != 0
	case StateFailed:
		return rec.Code != 0 || rec.Height != 0
	default:
		return false
	}
}
