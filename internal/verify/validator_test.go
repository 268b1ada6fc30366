package verify_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/testutil"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

func lock(t *testing.T, f *testutil.Fixture) *model.LockRecord {
	t.Helper()
	records, err := integrity.NewScanner(f.Root(), f.Project.Config).Scan(context.Background())
	require.NoError(t, err)
	rec, err := lockstore.New(f.Project).Update(records)
	require.NoError(t, err)
	return rec
}

func validate(t *testing.T, f *testutil.Fixture, fast bool) []model.Discrepancy {
	t.Helper()
	out, err := verify.New(f.Project).Validate(context.Background(), fast)
	require.NoError(t, err)
	return out
}

func kinds(ds []model.Discrepancy) map[model.DiscrepancyKind][]string {
	out := make(map[model.DiscrepancyKind][]string)
	for _, d := range ds {
		out[d.Kind] = append(out[d.Kind], d.Path)
	}
	return out
}

func TestValidate_CleanAfterLock(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)
	assert.Empty(t, validate(t, f, false))
	assert.Empty(t, validate(t, f, true))
}

func TestValidate_Unlocked(t *testing.T) {
	f := testutil.NewProject(t, map[string]string{"README.md": "x"}, nil)
	got := kinds(validate(t, f, false))
	assert.Len(t, got[model.DiscrepancyUnlocked], 1)
	assert.Equal(t, []string{"docs/API.md", "docs/SECURITY.md"}, got[model.DiscrepancyRequiredMissing])
}

func TestValidate_ContentMismatch(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)
	f.Write("docs/guide.md", "Read me first!\n")

	ds := validate(t, f, false)
	require.Len(t, ds, 1)
	assert.Equal(t, model.DiscrepancyContentMismatch, ds[0].Kind)
	assert.Equal(t, "docs/guide.md", ds[0].Path)
	assert.NotEqual(t, ds[0].Expected, ds[0].Actual)
}

func TestValidate_CollectsAll(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)
	f.Remove("docs/SECURITY.md")
	f.Write("docs/API.md", "changed")
	f.Write("docs/new.md", "new")
	f.Write("docs/guide-2.md", "also new")
	f.Remove("docs/guide.md")

	got := kinds(validate(t, f, false))
	assert.Equal(t, []string{"docs/SECURITY.md"}, got[model.DiscrepancyRequiredMissing])
	assert.Equal(t, []string{"docs/guide.md"}, got[model.DiscrepancyMissing], "required_missing takes precedence")
	assert.Equal(t, []string{"docs/API.md"}, got[model.DiscrepancyContentMismatch])
	assert.Equal(t, []string{"docs/guide-2.md", "docs/new.md"}, got[model.DiscrepancyUntracked])
	assert.Empty(t, got[model.DiscrepancyRootMismatch])
}

func TestValidate_RequiredEmpty(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)
	f.Write("docs/SECURITY.md", "")

	for _, fast := range []bool{false, true} {
		got := kinds(validate(t, f, fast))
		assert.Equal(t, []string{"docs/SECURITY.md"}, got[model.DiscrepancyRequiredEmpty], "fast=%v", fast)
		assert.Empty(t, got[model.DiscrepancyRequiredMissing], "fast=%v", fast)
	}
	got := kinds(validate(t, f, false))
	assert.Equal(t, []string{"docs/SECURITY.md"}, got[model.DiscrepancyContentMismatch])
}

func TestValidate_RequiredEmptyUnlocked(t *testing.T) {
	f := testutil.NewProject(t, map[string]string{
		"README.md":        "",
		"docs/API.md":      "# API\n",
		"docs/SECURITY.md": "# Security\n",
	}, nil)
	got := kinds(validate(t, f, false))
	assert.Len(t, got[model.DiscrepancyUnlocked], 1)
	assert.Equal(t, []string{"README.md"}, got[model.DiscrepancyRequiredEmpty])
}

func TestValidate_FastModeMissesMtimePreservingEdit(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)

	path := f.Project.Abs("docs/guide.md")
	info, err := os.Stat(path)
	require.NoError(t, err)
	f.Write("docs/guide.md", "Read me FIRST.\n")
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	assert.Empty(t, validate(t, f, true), "same size and mtime passes fast mode")
	got := kinds(validate(t, f, false))
	assert.Equal(t, []string{"docs/guide.md"}, got[model.DiscrepancyContentMismatch])
}

func TestValidate_FastModeReportsStale(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)

	path := f.Project.Abs("docs/guide.md")
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	got := kinds(validate(t, f, true))
	assert.Equal(t, []string{"docs/guide.md"}, got[model.DiscrepancyStale])
}

func TestValidate_RootMismatchOnAlgorithmChange(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	rec := lock(t, f)

	cfg := *f.Project.Config
	cfg.Algorithm = model.AlgorithmBLAKE3
	require.NoError(t, config.Save(f.Root(), &cfg))
	f.Reopen()

	ds := validate(t, f, false)
	require.Len(t, ds, 1)
	assert.Equal(t, model.DiscrepancyRootMismatch, ds[0].Kind)
	assert.Equal(t, string(rec.MerkleRoot), ds[0].Expected)
}

func TestValidate_MalformedLockAborts(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	require.NoError(t, os.WriteFile(f.Project.LockRecordPath(), []byte("not json"), 0644))
	_, err := verify.New(f.Project).Validate(context.Background(), false)
	assert.ErrorIs(t, err, errclass.ErrConfigMalformed)
}

func TestValidate_NoSideEffects(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	lock(t, f)
	before, err := os.ReadFile(f.Project.LockRecordPath())
	require.NoError(t, err)
	f.Write("docs/guide.md", "tampered")
	validate(t, f, false)
	after, err := os.ReadFile(f.Project.LockRecordPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "tampered", f.Read("docs/guide.md"))
}

func TestReport(t *testing.T) {
	f := testutil.NewProject(t, nil, nil)
	rec := lock(t, f)

	r, err := verify.New(f.Project).Report(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Locked)
	assert.True(t, r.Match)
	assert.Equal(t, rec.MerkleRoot, r.CurrentRoot)
	assert.Equal(t, len(testutil.DefaultFiles), r.FileCount)
	assert.Empty(t, r.Discrepancies)

	f.Write("docs/guide.md", "drift")
	r, err = verify.New(f.Project).Report(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Match)
	assert.Len(t, r.Discrepancies, 1)
}
