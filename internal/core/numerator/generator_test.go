package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetNextNumber(t *testing.T) {
	gen := NewMemory()
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := gen.GetNextNumber(ctx, DefaultConfig("TR"), nil, period)
	require.NoError(t, err)
	second, err := gen.GetNextNumber(ctx, DefaultConfig("TR"), nil, period)
	require.NoError(t, err)
	other, err := gen.GetNextNumber(ctx, DefaultConfig("PR"), nil, period)
	require.NoError(t, err)

	assert.Equal(t, "TR-2026-00001", first)
	assert.Equal(t, "TR-2026-00002", second)
	assert.Equal(t, "PR-2026-00001", other)
}

func TestKey_ResetPeriods(t *testing.T) {
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "GR_2026", Key(DefaultConfig("GR"), period))
	assert.Equal(t, "GR_2026_03", Key(Config{Prefix: "GR", Reset: PeriodMonth}, period))
	assert.Equal(t, "GR", Key(Config{Prefix: "GR", Reset: PeriodNever}, period))
}

func TestFormat_WithoutYear(t *testing.T) {
	cfg := Config{Prefix: "SH", PadWidth: 3}
	assert.Equal(t, "SH-042", Format(cfg, time.Now(), 42))
}
