package journal

import (
	"context"
	"fmt"

	"github.com/roach88/statetree/internal/engine"
	"github.com/roach88/statetree/internal/ir"
)

// Record inserts one folded action. It implements engine.Recorder.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a record written twice
// is silently ignored. The action and state are stored as canonical JSON so
// journals compare byte for byte across runs.
func (j *Journal) Record(ctx context.Context, rec engine.Record) error {
	action, err := marshalCanonical("action", rec.Action)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	state, err := marshalCanonical("state", rec.State)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	hash, err := ir.Hash(ir.DomainState, rec.State)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	errs, err := marshalErrors(rec.Errors)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	failure := ""
	if rec.Err != nil {
		failure = rec.Err.Error()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, batch_id, seq, tag, action, state, state_hash, errors, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Batch,
		rec.Seq,
		rec.Tag,
		action,
		state,
		hash,
		errs,
		failure,
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	return nil
}
