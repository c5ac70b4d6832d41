package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
)

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestRequireAffected(t *testing.T) {
	assert.NoError(t, requireAffected(fakeResult{rows: 1}, "delete part"))
	assert.ErrorIs(t, requireAffected(fakeResult{}, "delete part"), domain.ErrNotFound)

	driverErr := errors.New("driver gave up")
	err := requireAffected(fakeResult{err: driverErr}, "delete part")
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to delete part")
}
