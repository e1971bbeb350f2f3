package tasks

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/fcagent/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "extension", models.TaskProcessUserInput, map[string]any{"input": "hello"})
	require.NoError(t, err)
	assert.Positive(t, id)

	task, err := s.Get(ctx, id, "extension")
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Equal(t, models.TaskProcessUserInput, task.Type)
	assert.JSONEq(t, `{"input":"hello"}`, string(task.Input))
	assert.Nil(t, task.Result)
	assert.Nil(t, task.CompletedAt)
}

func TestCreateRequiresFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "", "x", nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = s.Create(ctx, "extension", "", nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestGetWrongUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "extension", models.TaskDraftEmail, nil)
	require.NoError(t, err)

	_, err = s.Get(ctx, id, "someone-else")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "extension", models.TaskProcessUserInput, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, id, models.TaskCompleted, models.Completion{Text: "done"}))

	task, err := s.Get(ctx, id, "extension")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)

	var got models.Completion
	require.NoError(t, json.Unmarshal(task.Result, &got))
	assert.Equal(t, "done", got.Text)
}

func TestUpdateStatusErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateStatus(ctx, 999, models.TaskCompleted, nil)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	id, err := s.Create(ctx, "extension", models.TaskProcessUserInput, nil)
	require.NoError(t, err)
	err = s.UpdateStatus(ctx, id, models.TaskStatus("finished"), nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 3 {
		_, err := s.Create(ctx, "extension", models.TaskProcessUserInput, nil)
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, "other", models.TaskProcessUserInput, nil)
	require.NoError(t, err)

	page, total, err := s.List(ctx, "extension", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)

	page, total, err = s.List(ctx, "extension", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	page, total, err = s.List(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}
