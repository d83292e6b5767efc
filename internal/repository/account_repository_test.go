package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementFailedLoginsReadsCountFromUpdateResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE accounts SET failed_login_attempts=LAST_INSERT_ID\(failed_login_attempts\+1\) WHERE id=\?`).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(3, 1))

	n, err := NewAccountRepo(db).IncrementFailedLogins(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// The count must come from the UPDATE's own result. A follow-up
	// `SELECT LAST_INSERT_ID()` would run on a pooled connection that may
	// not be the one that executed the UPDATE, returning another account's
	// counter. Any extra query fails this expectation check.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementFailedLoginsPropagatesExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE accounts SET failed_login_attempts=`).
		WithArgs(id.String()).
		WillReturnError(assert.AnError)

	_, err = NewAccountRepo(db).IncrementFailedLogins(context.Background(), id)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
