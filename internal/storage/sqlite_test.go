package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmoraes/nga/internal/models"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func conversion(id, batch, input string) *models.Conversion {
	return &models.Conversion{
		ID:        id,
		BatchID:   batch,
		InputPath: input,
		Status:    models.ConversionStatusRunning,
	}
}

func TestConversionLifecycle(t *testing.T) {
	s := newStorage(t)
	c := conversion("0b7f6c1e-1111", "", "agent.json")
	require.NoError(t, s.CreateConversion(c))
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetConversion(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversionStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.BatchID)

	done := time.Now()
	c.CompletedAt = &done
	c.Status = models.ConversionStatusComplete
	c.Shape = models.ShapeVendor
	c.TopicCount = 5
	c.ActionCount = 2
	c.HasLegacyVariables = true
	c.OutputPath = "/tmp/agent.agent"
	require.NoError(t, s.UpdateConversion(c))

	got, err = s.GetConversion(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversionStatusComplete, got.Status)
	assert.Equal(t, models.ShapeVendor, got.Shape)
	assert.Equal(t, 5, got.TopicCount)
	assert.Equal(t, 2, got.ActionCount)
	assert.True(t, got.HasLegacyVariables)
	assert.Equal(t, "/tmp/agent.agent", got.OutputPath)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, done, *got.CompletedAt, time.Second)
}

func TestFailedConversion(t *testing.T) {
	s := newStorage(t)
	c := conversion("f00d", "", "bad.json")
	require.NoError(t, s.CreateConversion(c))

	c.Status = models.ConversionStatusFailed
	c.ErrorCode = "STRUCTURAL"
	c.Error = "invalid input: document must be an object"
	require.NoError(t, s.UpdateConversion(c))

	got, err := s.GetConversion(c.ID)
	require.NoError(t, err)
	assert.True(t, got.Failed())
	assert.Equal(t, "STRUCTURAL", got.ErrorCode)
	assert.Equal(t, c.Error, got.Error)
}

func TestGetMissingConversion(t *testing.T) {
	s := newStorage(t)
	_, err := s.GetConversion("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveID(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.CreateConversion(conversion("abc123", "", "a.json")))
	require.NoError(t, s.CreateConversion(conversion("abc456", "", "b.json")))

	id, err := s.ResolveID("abc1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = s.ResolveID("abc")
	assert.True(t, errors.Is(err, ErrAmbiguous))

	_, err = s.ResolveID("zzz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveIDMatchesLiterally(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.CreateConversion(conversion("abc123", "", "a.json")))
	require.NoError(t, s.CreateConversion(conversion("a_c%99", "", "b.json")))

	tests := []struct {
		prefix string
		want   string
		err    error
	}{
		{"%", "", ErrNotFound},
		{"_", "", ErrNotFound},
		{"a_c", "a_c%99", nil},
		{"a_c%", "a_c%99", nil},
		{"a%", "", ErrNotFound},
		{"ab", "abc123", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id, err := s.ResolveID(tt.prefix)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestListConversions(t *testing.T) {
	s := newStorage(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"first", "second", "third"} {
		c := conversion(id, "batch-1", id+".json")
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateConversion(c))
	}
	require.NoError(t, s.CreateConversion(conversion("other", "batch-2", "z.json")))

	all, err := s.ListConversions(3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other", all[0].ID)
	assert.Equal(t, "third", all[1].ID)

	batch, err := s.ListBatch("batch-1")
	require.NoError(t, err)
	var inputs []string
	for _, c := range batch {
		inputs = append(inputs, c.InputPath)
	}
	assert.Equal(t, []string{"first.json", "second.json", "third.json"}, inputs)
}

func TestNotes(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.CreateConversion(conversion("n1", "", "a.json")))

	require.NoError(t, s.AddNotes("n1", []string{"one", "two"}))
	require.NoError(t, s.AddNotes("n1", nil))
	require.NoError(t, s.AddNotes("n1", []string{"three"}))

	notes, err := s.GetNotes("n1")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, notes[i].Text)
		assert.Equal(t, i+1, notes[i].SequenceNum)
		assert.Equal(t, "n1", notes[i].ConversionID)
	}
}

func TestDeleteConversion(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.CreateConversion(conversion("d1", "", "a.json")))
	require.NoError(t, s.AddNotes("d1", []string{"note"}))

	require.NoError(t, s.DeleteConversion("d1"))
	_, err := s.GetConversion("d1")
	assert.True(t, errors.Is(err, ErrNotFound))
	notes, err := s.GetNotes("d1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	assert.True(t, errors.Is(s.DeleteConversion("d1"), ErrNotFound))
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", FormatTimeAgo(now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", FormatTimeAgo(now.Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", FormatTimeAgo(now.Add(-3*time.Hour-time.Second)))
	old := now.Add(-72 * time.Hour)
	assert.Equal(t, old.Format("Jan 2"), FormatTimeAgo(old))
}
