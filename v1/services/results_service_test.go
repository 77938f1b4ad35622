package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// seedResults stores three submissions a minute apart, the middle one spam
func seedResults(t *testing.T, env *testEnv) (*models.FormType, *models.FieldKey, *models.FieldKey) {
	t.Helper()
	ctx := context.Background()
	name := env.fieldKey(t, "name", "text")
	agree := env.fieldKey(t, "agree", "boolean")
	ft := env.formType(t, models.FormTypeRequest{Definition: simpleDefinition(ref(agree.ID), ref(name.ID))})

	store := NewValueStore(env.db, env.keys)
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, who := range []string{"Ann", "Bot", "Cy"} {
		sub := models.Submission{ID: "afs_" + who, FormTypeID: ft.ID, IsSpam: who == "Bot"}
		sub.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, env.db.Omit("Values").Create(&sub).Error)
		require.NoError(t, store.Put(ctx, sub.ID, name.ID, who))
		if who != "Cy" {
			require.NoError(t, store.Put(ctx, sub.ID, agree.ID, "1"))
		}
	}
	return ft, name, agree
}

func TestResultsService_SubmissionTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ft, _, _ := seedResults(t, env)

	t.Run("SubmissionTable_NewestFirstInSchemaOrder", func(t *testing.T) {
		table, err := env.results.SubmissionTable(ctx, ft.ID, ResultsQuery{})
		require.NoError(t, err)

		assert.Equal(t, []string{models.ColumnHeaderID, models.ColumnHeaderDateTime, "Agree", "Name"}, table.Header)
		assert.Equal(t, int64(3), table.Total)
		assert.True(t, table.ShowSpam)
		require.Len(t, table.Rows, 3)
		assert.Equal(t, "afs_Cy", table.Rows[0][0])
		assert.Equal(t, []string{"", "Cy"}, table.Rows[0][2:], "missing values stay empty")
		assert.Equal(t, []string{"Yes", "Ann"}, table.Rows[2][2:])
		assert.Equal(t, []bool{false, true, false}, table.RowIsSpam)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Header))
		}
	})

	t.Run("SubmissionTable_Paged", func(t *testing.T) {
		table, err := env.results.SubmissionTable(ctx, ft.ID, ResultsQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), table.Total)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "afs_Bot", table.Rows[0][0])
	})

	t.Run("SubmissionTable_UnknownFormType", func(t *testing.T) {
		_, err := env.results.SubmissionTable(ctx, 9999, ResultsQuery{})
		assert.True(t, errors.Is(err, models.ErrFormTypeNotFound))
	})
}

func TestResultsService_Submissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedResults(t, env)

	t.Run("GetSubmission_Rendered", func(t *testing.T) {
		sub, err := env.results.GetSubmission(ctx, "afs_Ann", models.RenderDisplay)
		require.NoError(t, err)
		require.Len(t, sub.Fields, 2)
		assert.Equal(t, "agree", sub.Fields[0].Handle)
		assert.Equal(t, "Yes", sub.Fields[0].Value)

		raw, err := env.results.GetSubmission(ctx, "afs_Ann", models.RenderRaw)
		require.NoError(t, err)
		assert.Equal(t, "1", raw.Fields[0].Value)
	})

	t.Run("SetSpam", func(t *testing.T) {
		require.NoError(t, env.results.SetSpam(ctx, "afs_Bot", false))
		sub, err := env.results.GetSubmission(ctx, "afs_Bot", models.RenderRaw)
		require.NoError(t, err)
		assert.False(t, sub.IsSpam)
	})

	t.Run("DeleteSubmission", func(t *testing.T) {
		require.NoError(t, env.results.DeleteSubmission(ctx, "afs_Ann"))
		assert.Equal(t, int64(0), env.count(t, &models.FieldValue{}, "submission_id = ?", "afs_Ann"))

		_, err := env.results.GetSubmission(ctx, "afs_Ann", models.RenderRaw)
		assert.True(t, errors.Is(err, models.ErrSubmissionNotFound))
		err = env.results.DeleteSubmission(ctx, "afs_Ann")
		assert.True(t, errors.Is(err, models.ErrSubmissionNotFound))
	})
}

func TestResultsService_HidesSpamColumnWhenSpamIsDeleted(t *testing.T) {
	env := newTestEnv(t)
	key := env.fieldKey(t, "name", "text")
	ft := env.formType(t, models.FormTypeRequest{Definition: simpleDefinition(ref(key.ID)), DeleteSpam: true})

	table, err := env.results.SubmissionTable(context.Background(), ft.ID, ResultsQuery{})
	require.NoError(t, err)
	assert.False(t, table.ShowSpam)
	assert.Empty(t, table.Rows)
}

func TestResultsService_DeleteSubmissionBeginFailure(t *testing.T) {
	sqlDB, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	results := NewResultsService(db, nil, nil)
	mockDB.ExpectBegin().WillReturnError(errors.New("connection reset"))

	err = results.DeleteSubmission(context.Background(), "afs_1")
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
