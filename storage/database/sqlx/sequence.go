package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

const nextSequenceQuery = `
INSERT INTO challan_sequence (key, value) VALUES ($1, 1)
ON CONFLICT (key) DO UPDATE SET value = challan_sequence.value + 1
RETURNING value`

type sequencer struct {
	exec core.DBExecutor
}

var _ fee.Sequencer = (*sequencer)(nil)

// NewSequencer returns a Sequencer backed by the challan_sequence table.
// Numbers are never handed out twice, even when the caller's transaction rolls back.
func NewSequencer(exec core.DBExecutor) fee.Sequencer {
	return &sequencer{exec: exec}
}

func (s *sequencer) Next(ctx context.Context, key string) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, s.exec, &n, nextSequenceQuery, key); err != nil {
		return 0, errors.Wrap(err, "incrementing sequence "+key)
	}
	return n, nil
}

// NewRepositories returns the fee repositories backed by exec.
func NewRepositories(exec core.DBExecutor) fee.Repositories {
	return fee.Repositories{
		Students:   NewStudentRepository(exec),
		Classes:    NewClassRepository(exec),
		Structures: NewStructureRepository(exec),
		Challans:   NewChallanRepository(exec),
		Payments:   NewPaymentRepository(exec),
	}
}
