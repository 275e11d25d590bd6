package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate signals a unique-constraint violation. The evaluations table
// carries a partial unique index on (task_id, evaluator_id, evaluation_type)
// WHERE is_active, so concurrent duplicate submissions lose here rather than
// relying on the check-then-insert pattern alone.
var ErrDuplicate = errors.New("duplicate record")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
