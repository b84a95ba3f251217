package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/yecs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDocs struct {
	mu      sync.Mutex
	doc     *types.ApplicantProfile
	getErr  error
	putErr  error
	puts    int
	release chan struct{}
}

func (f *fakeDocs) GetDocument(_ context.Context, _ string) (*types.ApplicantProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc, f.getErr
}

func (f *fakeDocs) PutDocument(_ context.Context, _ string, p types.ApplicantProfile) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.doc = &p
	return nil
}

func (f *fakeDocs) stored() *types.ApplicantProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc
}

func TestStore_MergeAndGet(t *testing.T) {
	docs := &fakeDocs{}
	s := New("user-1", docs, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := s.MergeSection(ctx, types.SectionPersonal, json.RawMessage(`{"firstName": "Maya"}`))
	require.NoError(t, err)
	got, err := s.MergeSection(ctx, types.SectionFinancials, json.RawMessage(`{"monthlyIncome": 4000}`))
	require.NoError(t, err)

	assert.Equal(t, "Maya", got.Personal.FirstName)
	assert.Equal(t, got, s.Get())

	s.Flush()
	require.NotNil(t, docs.stored())
	assert.Equal(t, s.Get(), *docs.stored())
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New("user-1", nil, zaptest.NewLogger(t))
	_, err := s.MergeSection(context.Background(), types.SectionDocuments, json.RawMessage(`[{"name": "a.pdf"}]`))
	require.NoError(t, err)

	p := s.Get()
	p.Documents[0].Name = "mutated"
	assert.Equal(t, "a.pdf", s.Get().Documents[0].Name)
}

func TestStore_UnknownSection(t *testing.T) {
	s := New("user-1", nil, zaptest.NewLogger(t))
	_, err := s.MergeSection(context.Background(), types.Section("nope"), json.RawMessage(`{}`))
	assert.Error(t, err)
	assert.Equal(t, types.NewApplicantProfile(), s.Get())
}

func TestStore_SaveDoesNotBlockMerge(t *testing.T) {
	docs := &fakeDocs{release: make(chan struct{}), putErr: errors.New("disk full")}
	s := New("user-1", docs, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		_, err := s.MergeSection(context.Background(), types.SectionPersonal, json.RawMessage(`{"firstName": "Maya"}`))
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("merge waited for persistence")
	}

	close(docs.release)
	s.Flush()

	assert.Equal(t, 1, docs.puts)
	assert.Equal(t, "Maya", s.Get().Personal.FirstName)
}

func TestStore_SaveSurvivesCanceledRequest(t *testing.T) {
	docs := &fakeDocs{}
	s := New("user-1", docs, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.MergeSection(ctx, types.SectionPersonal, json.RawMessage(`{"firstName": "Maya"}`))
	require.NoError(t, err)
	cancel()

	s.Flush()
	require.NotNil(t, docs.stored())
	assert.Equal(t, "Maya", docs.stored().Personal.FirstName)
}

func TestStore_LastSaveHasLatestProfile(t *testing.T) {
	docs := &fakeDocs{}
	s := New("user-1", docs, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := s.MergeSection(ctx, types.SectionFinancials, json.RawMessage(fmt.Sprintf(`{"monthlyIncome": %d}`, i)))
		require.NoError(t, err)
	}
	s.Flush()

	assert.Equal(t, s.Get(), *docs.stored())
}

func TestStore_Restore(t *testing.T) {
	saved := types.NewApplicantProfile()
	saved.Business.BusinessName = "Maya's Bakery"
	docs := &fakeDocs{doc: &saved}

	s := New("user-1", docs, zaptest.NewLogger(t))
	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, "Maya's Bakery", s.Get().Business.BusinessName)
}

func TestStore_RestoreNothingStored(t *testing.T) {
	s := New("user-1", &fakeDocs{}, zaptest.NewLogger(t))
	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, types.NewApplicantProfile(), s.Get())
}

func TestStore_RestoreFailure(t *testing.T) {
	s := New("user-1", &fakeDocs{getErr: errors.New("connection refused")}, zaptest.NewLogger(t))

	err := s.Restore(context.Background())

	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, "restore", persistErr.Op)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, types.NewApplicantProfile(), s.Get())
}
