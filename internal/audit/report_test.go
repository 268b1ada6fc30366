package audit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docseal/docseal/pkg/model"
)

func TestReport(t *testing.T) {
	l := openLog(t, t.TempDir())
	for _, kind := range []model.EventKind{model.EventLock, model.EventSnapshot, model.EventSnapshot, model.EventHeal} {
		_, err := l.Append(kind, nil)
		require.NoError(t, err)
	}

	r := l.Report(time.Time{})
	assert.Equal(t, 4, r.TotalEntries)
	assert.Equal(t, 4, r.WindowEntries)
	assert.Equal(t, 2, r.ByKind[model.EventSnapshot])
	assert.Equal(t, int64(4), r.HeadSequence)
	assert.True(t, r.ChainVerified)
	require.Len(t, r.Recent, 4)
	assert.Equal(t, model.EventHeal, r.Recent[0].EventKind)

	// Entries are one second apart starting at epoch.
	windowed := l.Report(epoch.Add(2 * time.Second))
	assert.Equal(t, 4, windowed.TotalEntries)
	assert.Equal(t, 2, windowed.WindowEntries)
	assert.Equal(t, 0, windowed.ByKind[model.EventLock])
	require.NotNil(t, windowed.FirstAt)
	assert.True(t, windowed.FirstAt.Equal(epoch.Add(2*time.Second)))
}
