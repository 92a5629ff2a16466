// Package integrationtest wires the file families against an in-memory file
// store and database.
package integrationtest

import (
	"path"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	disbursementrepository "github.com/smallbiznis/sims/internal/disbursement/repository"
	"github.com/smallbiznis/sims/internal/integration"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	sequenceservice "github.com/smallbiznis/sims/internal/sequence/service"
	"github.com/smallbiznis/sims/internal/testutil"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Now = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

type Harness struct {
	DB            *gorm.DB
	Fixture       *testutil.Fixture
	GenID         *snowflake.Node
	Clock         *clock.FakeClock
	FS            afero.Fs
	Transport     *integration.FileStore
	Runner        *integration.InboundRunner
	Sequences     sequencedomain.Service
	Disbursements disbursementdomain.Repository
	Config        config.Config
}

func New(t *testing.T) *Harness {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := config.Config{
		Integration: config.IntegrationConfig{
			RequestFolder:   "IN",
			ResponseFolder:  "OUT",
			EnvironmentCode: "T",
			Originator:      "BC",
			CRAProgramArea:  "BCSA",
			CRAEnvironment:  "A",
		},
	}
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(cfg.Integration.ResponseFolder, 0o755))
	store := integration.NewFileStore(fs, cfg.Integration, zap.NewNop())

	fixture := testutil.NewFixture(t, db, Now)
	return &Harness{
		DB:            db,
		Fixture:       fixture,
		GenID:         fixture.Node,
		Clock:         clock.NewFakeClock(Now),
		FS:            fs,
		Transport:     store,
		Runner:        integration.NewInboundRunner(integration.RunnerParams{Transport: store, Log: zap.NewNop()}),
		Sequences:     sequenceservice.NewService(sequenceservice.Params{DB: db, Log: zap.NewNop()}),
		Disbursements: disbursementrepository.Provide(),
		Config:        cfg,
	}
}

// PutResponse drops a rendered file into the response folder.
func (h *Harness) PutResponse(t *testing.T, name string, file *fixedwidth.File) {
	t.Helper()
	content, err := file.Bytes()
	require.NoError(t, err)
	h.PutRaw(t, name, content)
}

func (h *Harness) PutRaw(t *testing.T, name string, content []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(h.FS, path.Join(h.Config.Integration.ResponseFolder, name), content, 0o644))
}

// Uploaded returns the lines of an uploaded request file.
func (h *Harness) Uploaded(t *testing.T, remotePath string) []string {
	t.Helper()
	content, err := afero.ReadFile(h.FS, remotePath)
	require.NoError(t, err)
	return fixedwidth.SplitLines(content)
}

func (h *Harness) Archived(name string) bool {
	ok, _ := afero.Exists(h.FS, path.Join(h.Config.Integration.ResponseFolder, "archive", name))
	return ok
}

func (h *Harness) Pending(name string) bool {
	ok, _ := afero.Exists(h.FS, path.Join(h.Config.Integration.ResponseFolder, name))
	return ok
}
