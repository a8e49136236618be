package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/oplog"
)

// SyncMergeInput carries the two op logs to reconcile.
type SyncMergeInput struct {
	Left  []oplog.Op `json:"left"`
	Right []oplog.Op `json:"right"`
}

// SyncMerge reconciles two op logs. It never fails and touches no state.
func SyncMerge(input SyncMergeInput) *oplog.MergeResult {
	result := oplog.Merge(input.Left, input.Right)
	return &result
}

// SkippedOp is a reconciled op that SyncApply did not write, with the reason.
type SkippedOp struct {
	Op     oplog.Op `json:"op"`
	Reason string   `json:"reason"`
}

// SyncApplyOutput is the merge result plus what was written locally.
type SyncApplyOutput struct {
	oplog.MergeResult
	Applied []oplog.Op  `json:"applied"`
	Skipped []SkippedOp `json:"skipped"`
}

// editableBookmarkFields are the fields SyncApply writes.
var editableBookmarkFields = map[string]bool{"title": true, "url": true, "notes": true}

// SyncApply merges two logs and writes the winning bookmark edits (title, url,
// notes) to the store in one transaction. Ops for other entities or fields,
// for bookmarks that do not exist locally, or with unusable values are
// reported as skipped rather than failing the whole apply.
func SyncApply(ctx context.Context, database *sql.DB, input SyncMergeInput) (*SyncApplyOutput, error) {
	out := &SyncApplyOutput{
		MergeResult: oplog.Merge(input.Left, input.Right),
		Applied:     []oplog.Op{},
		Skipped:     []SkippedOp{},
	}

	now := time.Now().Unix()
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		for _, op := range out.MergedOps {
			if op.Entity != "bookmark" {
				out.Skipped = append(out.Skipped, SkippedOp{Op: op, Reason: "unsupported entity"})
				continue
			}
			if !editableBookmarkFields[op.Field] {
				out.Skipped = append(out.Skipped, SkippedOp{Op: op, Reason: "field is not editable"})
				continue
			}
			var value *string
			if err := json.Unmarshal(op.Value, &value); err != nil {
				out.Skipped = append(out.Skipped, SkippedOp{Op: op, Reason: "value must be a string or null"})
				continue
			}
			if op.Field == "notes" {
				value = cleanOptionalString(value)
			}

			err := db.UpdateBookmarkField(ctx, tx, op.EntityID, op.Field, value, now)
			if lErr, ok := errors.As(err); ok && (lErr.Code == errors.ErrNotFound || lErr.Code == errors.ErrInvalidRequest) {
				out.Skipped = append(out.Skipped, SkippedOp{Op: op, Reason: lErr.Message})
				continue
			}
			if err != nil {
				return err
			}
			out.Applied = append(out.Applied, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
