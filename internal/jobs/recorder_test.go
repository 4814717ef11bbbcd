package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, job *Job) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id string, u Update) (bool, error) {
	args := m.Called(ctx, id, u)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) SaveFeedback(ctx context.Context, id string, f Feedback) (*Job, error) {
	args := m.Called(ctx, id, f)
	job, _ := args.Get(0).(*Job)
	return job, args.Error(1)
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*Job)
	return job, args.Error(1)
}

func (m *mockStore) FindByOwner(ctx context.Context, owner string) ([]*Job, error) {
	args := m.Called(ctx, owner)
	list, _ := args.Get(0).([]*Job)
	return list, args.Error(1)
}

func (m *mockStore) FindLatestByOwner(ctx context.Context, owner string) (*Job, error) {
	args := m.Called(ctx, owner)
	job, _ := args.Get(0).(*Job)
	return job, args.Error(1)
}

func (m *mockStore) FindStale(ctx context.Context, status Status, before time.Time) ([]*Job, error) {
	args := m.Called(ctx, status, before)
	list, _ := args.Get(0).([]*Job)
	return list, args.Error(1)
}

func TestRecorder_SwallowsCreateFailure(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	rec := NewRecorder(store)
	id := rec.Create(context.Background(), NewProcessingJob("alice", "[]"))

	assert.Nil(t, id)
	store.AssertExpectations(t)
}

func TestRecorder_SwallowsUpdateFailure(t *testing.T) {
	store := &mockStore{}
	store.On("Update", mock.Anything, "id-1", mock.Anything).Return(false, ErrInvalidID)

	rec := NewRecorder(store)
	id := "id-1"
	assert.False(t, rec.Update(context.Background(), &id, FailedUpdate()))
	store.AssertExpectations(t)
}

func TestRecorder_PassesThrough(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return("id-1", nil)
	store.On("Update", mock.Anything, "id-1", mock.Anything).Return(true, nil)

	rec := NewRecorder(store)
	id := rec.Create(context.Background(), NewProcessingJob("alice", "[]"))
	require.NotNil(t, id)
	assert.Equal(t, "id-1", *id)
	assert.True(t, rec.Update(context.Background(), id, CompletedUpdate("T", "a.pdf", "a.docx")))
	store.AssertExpectations(t)
}

func TestRecorder_NilStoreAndNilID(t *testing.T) {
	rec := NewRecorder(nil)
	assert.False(t, rec.Enabled())
	assert.Nil(t, rec.Create(context.Background(), NewProcessingJob("alice", "[]")))

	store := &mockStore{}
	rec = NewRecorder(store)
	assert.False(t, rec.Update(context.Background(), nil, FailedUpdate()))
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
