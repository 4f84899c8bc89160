package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/bopserver/models"
)

type fakeDatabase struct {
	mu      sync.Mutex
	saved   []models.GameRecord
	limit   int
	saveErr error
}

func (f *fakeDatabase) SaveGameRecord(_ context.Context, record *models.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *record)
	return nil
}

func (f *fakeDatabase) RecentGameRecords(_ context.Context, limit int) ([]models.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.saved, nil
}

func (f *fakeDatabase) Close() error { return nil }

func (f *fakeDatabase) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestResultService_SubmitAndRun(t *testing.T) {
	db := &fakeDatabase{}
	svc := NewResultService(db, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	require.True(t, svc.Submit(models.GameRecord{RoomCode: "ABCD"}))
	require.True(t, svc.Submit(models.GameRecord{RoomCode: "WXYZ"}))

	assert.Eventually(t, func() bool { return db.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestResultService_QueueFull(t *testing.T) {
	svc := NewResultService(&fakeDatabase{}, 1)

	assert.True(t, svc.Submit(models.GameRecord{RoomCode: "A"}))
	assert.False(t, svc.Submit(models.GameRecord{RoomCode: "B"}))
}

func TestResultService_NoDatabase(t *testing.T) {
	svc := NewResultService(nil, 1)

	assert.False(t, svc.Submit(models.GameRecord{RoomCode: "A"}))
	got, err := svc.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResultService_SaveErrorKeepsRunning(t *testing.T) {
	db := &fakeDatabase{saveErr: assert.AnError}
	svc := NewResultService(db, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	require.True(t, svc.Submit(models.GameRecord{RoomCode: "A"}))
	assert.Eventually(t, func() bool { return len(svc.queue) == 0 }, time.Second, 5*time.Millisecond)

	db.mu.Lock()
	db.saveErr = nil
	db.mu.Unlock()
	require.True(t, svc.Submit(models.GameRecord{RoomCode: "B"}))
	assert.Eventually(t, func() bool { return db.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestResultService_DrainAfterRunStops(t *testing.T) {
	db := &fakeDatabase{}
	svc := NewResultService(db, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Run(ctx)

	require.True(t, svc.Submit(models.GameRecord{RoomCode: "LATE"}))
	require.True(t, svc.Submit(models.GameRecord{RoomCode: "LAST"}))

	assert.Equal(t, 2, svc.Drain(context.Background()))
	assert.Equal(t, 2, db.count())
	assert.Zero(t, svc.Drain(context.Background()), "an empty queue drains immediately")
	assert.Zero(t, NewResultService(nil, 1).Drain(context.Background()))
}

func TestResultService_RecentClampsLimit(t *testing.T) {
	db := &fakeDatabase{}
	svc := NewResultService(db, 1)

	_, err := svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 20, db.limit)

	_, err = svc.Recent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, db.limit)
}
