package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "saathi.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 31, 8, 5, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, Verification{
		MedicationID: "bp", Name: "Blood Pressure Medicine", Color: "green",
		ImagePath: "verifications/med_bp.jpg", VerifiedAt: base,
	}))
	require.NoError(t, s.Record(ctx, Verification{
		MedicationID: "dm", Name: "Diabetes Medicine", Color: "red",
		VerifiedAt: base.Add(time.Hour),
	}))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "dm", got[0].MedicationID, "newest first")
	assert.Equal(t, "bp", got[1].MedicationID)
	assert.Equal(t, "verifications/med_bp.jpg", got[1].ImagePath)
	assert.True(t, got[1].VerifiedAt.Equal(base))
}

func TestRecentLimit(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "saathi.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Verification{
			MedicationID: "bp", Name: "BP", Color: "green",
			VerifiedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpenCreatesParentDir(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "saathi.db"))
	require.NoError(t, err)
	s.Close()
}
