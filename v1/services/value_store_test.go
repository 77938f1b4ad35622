package services

import (
	"context"
	"testing"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestValueStore_PutAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := NewValueStore(env.db, env.keys)
	agree := env.fieldKey(t, "agree", "boolean")

	t.Run("Put_Overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "afs_1", agree.ID, "0"))
		require.NoError(t, store.Put(ctx, "afs_1", agree.ID, "1"))
		assert.Equal(t, int64(1), env.count(t, &models.FieldValue{}, "submission_id = ?", "afs_1"))

		raw, err := store.Get(ctx, "afs_1", *agree, models.RenderRaw)
		require.NoError(t, err)
		assert.Equal(t, "1", raw)

		display, err := store.Get(ctx, "afs_1", *agree, models.RenderDisplay)
		require.NoError(t, err)
		assert.Equal(t, "Yes", display)
	})

	t.Run("Get_MissingIsEmpty", func(t *testing.T) {
		value, err := store.Get(ctx, "afs_unknown", *agree, models.RenderDisplay)
		require.NoError(t, err)
		assert.Equal(t, "", value)
	})

	t.Run("DeleteBySubmission", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "afs_2", agree.ID, "1"))
		require.NoError(t, store.DeleteBySubmission(ctx, "afs_1"))
		assert.Equal(t, int64(0), env.count(t, &models.FieldValue{}, "submission_id = ?", "afs_1"))
		assert.Equal(t, int64(1), env.count(t, &models.FieldValue{}, "submission_id = ?", "afs_2"))
	})
}

func TestValueStore_BulkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := NewValueStore(env.db, env.keys)
	a := env.fieldKey(t, "alpha", "text")
	b := env.fieldKey(t, "beta", "boolean")
	c := env.fieldKey(t, "gamma", "text")

	// written in an order unrelated to the key order
	require.NoError(t, store.Put(ctx, "afs_2", c.ID, "c2"))
	require.NoError(t, store.Put(ctx, "afs_1", b.ID, "1"))
	require.NoError(t, store.Put(ctx, "afs_2", a.ID, "a2"))
	require.NoError(t, store.Put(ctx, "afs_1", a.ID, "a1"))

	keys := []models.FieldKey{*c, *a, *b}
	values, err := store.BulkRead(ctx, []string{"afs_1", "afs_2", "afs_3"}, keys, models.RenderDisplay)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "a1", "Yes"}, values["afs_1"])
	assert.Equal(t, []string{"c2", "a2", ""}, values["afs_2"])
	assert.Equal(t, []string{"", "", ""}, values["afs_3"])

	empty, err := store.BulkRead(ctx, nil, keys, models.RenderRaw)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestValueStore_WithTxRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := NewValueStore(env.db, env.keys)
	key := env.fieldKey(t, "note", "text")

	err := env.db.Transaction(func(tx *gorm.DB) error {
		if err := store.WithTx(tx).Put(ctx, "afs_1", key.ID, "draft"); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)
	assert.Equal(t, int64(0), env.count(t, &models.FieldValue{}))
}
