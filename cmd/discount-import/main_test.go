package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		code string
		pct  int
		ok   bool
	}{
		{line: "SPRING24", code: "SPRING24", pct: 10, ok: true},
		{line: "  SUMMER,25 ", code: "SUMMER", pct: 25, ok: true},
		{line: "FREEMEAL,100", code: "FREEMEAL", pct: 100, ok: true},
		{line: "", ok: false},
		{line: "ABC", ok: false},
		{line: strings.Repeat("X", 33), ok: false},
		{line: "TWO WORDS", ok: false},
		{line: "WINTER,abc", ok: false},
		{line: "WINTER,0", ok: false},
		{line: "WINTER,101", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			code, pct, ok := parseLine(tt.line, 10)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.code, code)
				assert.Equal(t, tt.pct, pct)
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "SHARED01,20", "ONLYINA1", "TRIPLE01", "bad"),
		writeGz(t, dir, "b.gz", "SHARED01,30", "TRIPLE01", "ONLYINB1"),
		writeGz(t, dir, "c.gz", "TRIPLE01,50", "ONLYINC1", "ONLYINA1x"),
	}
	cfg := reconcileConfig{defaultPercentage: 10, capacity: 1000}

	t.Run("TwoSources", func(t *testing.T) {
		cfg := cfg
		cfg.minSources = 2
		got, err := reconcile(context.Background(), files, cfg)
		require.NoError(t, err)
		assert.Equal(t, []entry{
			{code: "SHARED01", percentage: 20},
			{code: "TRIPLE01", percentage: 10},
		}, got)
	})
	t.Run("ThreeSources", func(t *testing.T) {
		cfg := cfg
		cfg.minSources = 3
		got, err := reconcile(context.Background(), files, cfg)
		require.NoError(t, err)
		assert.Equal(t, []entry{{code: "TRIPLE01", percentage: 10}}, got)
	})
	t.Run("SingleSource", func(t *testing.T) {
		cfg := cfg
		cfg.minSources = 1
		got, err := reconcile(context.Background(), files, cfg)
		require.NoError(t, err)
		assert.Len(t, got, 6)
		assert.Equal(t, "SHARED01", got[0].code)
	})
}

func TestReconcile_MissingFile(t *testing.T) {
	_, err := reconcile(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")},
		reconcileConfig{minSources: 1, defaultPercentage: 10, capacity: 10})
	require.Error(t, err)
}

func TestReconcile_Canceled(t *testing.T) {
	dir := t.TempDir()
	path := writeGz(t, dir, "a.gz", "SHARED01")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reconcile(ctx, []string{path}, reconcileConfig{minSources: 1, defaultPercentage: 10, capacity: 10})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildCodes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	codes := buildCodes([]entry{{code: "SPRING24", percentage: 15}}, now, now.Add(time.Hour), 3)

	require.Len(t, codes, 1)
	c := codes[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "SPRING24", c.Code)
	assert.Equal(t, 15, c.Percentage)
	assert.True(t, c.IsActive)
	assert.Equal(t, 3, c.MaxUsagePerUser)
	assert.Equal(t, now.Add(time.Hour), c.ExpirationDate)
	assert.Zero(t, c.UsedCount)
}
