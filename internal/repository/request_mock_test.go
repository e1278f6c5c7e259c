package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"sigede/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestRequestRepository_TransitionStatus_ConditionalUpdate(t *testing.T) {
	updateSQL := regexp.QuoteMeta(`UPDATE "service_requests" SET`)
	guard := regexp.QuoteMeta(`WHERE id = $`)
	countSQL := regexp.QuoteMeta(`SELECT count(*) FROM "service_requests" WHERE id = $1`)

	t.Run("zero rows on existing request is a conflict", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRequestRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(updateSQL + ".*" + guard + ".*AND status = \\$").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(countSQL).WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		_, err := repo.TransitionStatus(context.Background(), "req-1",
			models.StatusPendingLocal, models.StatusAutoApproved,
			TransitionMeta{Event: models.EventSweepTimeout})
		assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failure is a persistence error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRequestRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(updateSQL).WillReturnError(errors.New("connection reset by peer"))
		mock.ExpectRollback()

		_, err := repo.TransitionStatus(context.Background(), "req-2",
			models.StatusPendingLocal, models.StatusAutoApproved,
			TransitionMeta{Event: models.EventSweepTimeout})
		assert.True(t, models.HasCode(err, models.CodePersistence), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
