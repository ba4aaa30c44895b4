package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close()
	})

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCampaignRepository_SaveTranslatesUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "campaigns"`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uk_campaigns_name"})
	mock.ExpectRollback()

	err := repo.Save(context.Background(), &models.Campaign{Name: "Taken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "uk_campaigns_name")
}

func TestCampaignRepository_ByNameMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCampaignRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	c, err := repo.ByName(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCampaignRepository_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		notFound bool
	}{
		{name: "updated", affected: 1},
		{name: "missing row", affected: 0, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := repository.NewCampaignRepository(db)

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "campaigns" SET`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.notFound {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			err := repo.UpdateStatus(context.Background(), 7, models.CampaignStatusSubmitted)
			if tt.notFound {
				assert.True(t, repository.IsNotFound(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWithTransaction_SharesAndRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCampaignRepository(db)
	tx := repository.NewGormTransactor(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "campaigns" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "campaigns" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := tx.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.UpdateStatus(ctx, 1, models.CampaignStatusSubmitted); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, 2, models.CampaignStatusSubmitted); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWithTransaction_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "campaigns" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repository.WithTransaction(context.Background(), db, func(ctx context.Context) error {
		return repo.UpdateStatus(ctx, 1, models.CampaignStatusApproved)
	})
	assert.NoError(t, err)
}
