package integration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/smallbiznis/sims/pkg/summary"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("OUT", 0o755))
	return NewFileStore(fs, config.IntegrationConfig{RequestFolder: "IN", ResponseFolder: "OUT"}, zap.NewNop()), fs
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "TECRTF000012.DAT", FileName("t", CodeECertFullTime, 12, DefaultSequenceWidth, "dat"))
	assert.Equal(t, "PCRAR00007.TXT", FileName("P", CodeCRARequest, 7, CRASequenceWidth, "TXT"))
}

func TestFileStoreListsMatchingFilesInNameOrder(t *testing.T) {
	store, fs := newTestStore(t)
	for _, name := range []string{"TSINR000002.DAT", "TSINR000001.DAT", "TMSFR000001.DAT", "notes.txt"} {
		require.NoError(t, afero.WriteFile(fs, "OUT/"+name, []byte("x"), 0o644))
	}

	files, err := store.List(context.Background(), SINResponsePattern)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "TSINR000001.DAT", files[0].Name)
	assert.Equal(t, "TSINR000002.DAT", files[1].Name)
}

func TestFileStoreUploadRefusesOverwrite(t *testing.T) {
	store, fs := newTestStore(t)
	ctx := context.Background()

	remote, err := store.Upload(ctx, "TSINV000001.DAT", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "IN/TSINV000001.DAT", remote)

	content, err := afero.ReadFile(fs, remote)
	require.NoError(t, err)
	assert.Equal(t, "content", string(content))

	_, err = store.Upload(ctx, "TSINV000001.DAT", []byte("again"))
	assert.ErrorIs(t, err, ErrFileExists)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.TransportFailure())
}

func TestFileStoreArchiveAndDelete(t *testing.T) {
	store, fs := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(fs, "OUT/TSINR000001.DAT", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "OUT/TFEDR000001.DAT", []byte("x"), 0o644))

	require.NoError(t, store.Archive(ctx, "TSINR000001.DAT"))
	exists, _ := afero.Exists(fs, "OUT/archive/TSINR000001.DAT")
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "TFEDR000001.DAT"))
	exists, _ = afero.Exists(fs, "OUT/TFEDR000001.DAT")
	assert.False(t, exists)

	assert.ErrorIs(t, store.Delete(ctx, "TFEDR000001.DAT"), ErrFileNotFound)
}

func TestInboundRunnerIsolatesFailingFiles(t *testing.T) {
	store, fs := newTestStore(t)
	require.NoError(t, afero.WriteFile(fs, "OUT/TSINR000001.DAT", []byte("good\r\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "OUT/TSINR000002.DAT", []byte("bad\r\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "OUT/TSINR000003.DAT", []byte("good\r\n"), 0o644))

	runner := NewInboundRunner(RunnerParams{Transport: store, Log: zap.NewNop()})
	spec := InboundSpec{Integration: "sin_validation", Pattern: SINResponsePattern}

	var seen []string
	result, err := runner.Process(context.Background(), spec, summary.New(zap.NewNop(), "test"), func(_ context.Context, file InboundFile) error {
		seen = append(seen, file.Name)
		assert.NotEmpty(t, file.CorrelationID)
		if file.Lines[0] == "bad" {
			return &fixedwidth.EnvelopeError{Kind: fixedwidth.RecordCountMismatch, Spec: "sin", Expected: "4", Actual: "5"}
		}
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, fixedwidth.ErrRecordCountMismatch))
	assert.Equal(t, []string{"TSINR000001.DAT", "TSINR000002.DAT", "TSINR000003.DAT"}, seen)
	assert.Equal(t, 2, result.Processed())

	stillThere, _ := afero.Exists(fs, "OUT/TSINR000002.DAT")
	assert.True(t, stillThere)
	archived, _ := afero.Exists(fs, "OUT/archive/TSINR000003.DAT")
	assert.True(t, archived)
}

func TestInboundRunnerDeletesWhenConfigured(t *testing.T) {
	store, fs := newTestStore(t)
	require.NoError(t, afero.WriteFile(fs, "OUT/TBALS000001.DAT", []byte("x"), 0o644))

	runner := NewInboundRunner(RunnerParams{Transport: store, Log: zap.NewNop()})
	spec := InboundSpec{Integration: "loan_balance", Pattern: regexp.MustCompile(`^[A-Z]BALS\d{6}\.DAT$`), Disposal: DisposalDelete}

	_, err := runner.Process(context.Background(), spec, nil, func(context.Context, InboundFile) error { return nil })
	require.NoError(t, err)

	exists, _ := afero.Exists(fs, "OUT/TBALS000001.DAT")
	assert.False(t, exists)
	archived, _ := afero.Exists(fs, "OUT/archive/TBALS000001.DAT")
	assert.False(t, archived)
}
