package integration

import (
	"context"
	"os"
	"path"
	"regexp"
	"sort"

	"github.com/smallbiznis/sims/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const archiveFolder = "archive"

// FileStore is the Transport over a folder tree shared with the funding
// authority. Production mounts the OS file system under the configured root;
// tests use an in-memory one.
type FileStore struct {
	fs             afero.Fs
	requestFolder  string
	responseFolder string
	log            *zap.Logger
}

func NewFileStore(fs afero.Fs, cfg config.IntegrationConfig, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{
		fs:             fs,
		requestFolder:  cfg.RequestFolder,
		responseFolder: cfg.ResponseFolder,
		log:            log.Named("integration.filestore"),
	}
}

// NewOsFileStore roots a FileStore at cfg.RootFolder on the local disk.
func NewOsFileStore(cfg config.Config, log *zap.Logger) Transport {
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Integration.RootFolder)
	return NewFileStore(fs, cfg.Integration, log)
}

func (s *FileStore) List(ctx context.Context, pattern *regexp.Regexp) ([]RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.responseFolder)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, transportErr("list", s.responseFolder, err)
	}

	var files []RemoteFile
	for _, entry := range entries {
		if entry.IsDir() || !pattern.MatchString(entry.Name()) {
			continue
		}
		files = append(files, RemoteFile{Name: entry.Name(), Size: entry.Size(), ModTime: entry.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *FileStore) Download(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := path.Join(s.responseFolder, name)
	content, err := afero.ReadFile(s.fs, p)
	if os.IsNotExist(err) {
		return nil, transportErr("download", p, ErrFileNotFound)
	}
	return content, transportErr("download", p, err)
}

// Upload writes through a temporary name so readers never see a partial file.
func (s *FileStore) Upload(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := path.Join(s.requestFolder, name)
	if exists, err := afero.Exists(s.fs, p); err != nil {
		return "", transportErr("upload", p, err)
	} else if exists {
		return "", transportErr("upload", p, ErrFileExists)
	}
	if err := s.fs.MkdirAll(s.requestFolder, 0o755); err != nil {
		return "", transportErr("upload", p, err)
	}

	tmp := p + ".part"
	if err := afero.WriteFile(s.fs, tmp, content, 0o644); err != nil {
		return "", transportErr("upload", p, err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return "", transportErr("upload", p, err)
	}

	s.log.Info("integration.file.uploaded", zap.String("path", p), zap.Int("bytes", len(content)))
	return p, nil
}

func (s *FileStore) Archive(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := path.Join(s.responseFolder, name)
	dir := path.Join(s.responseFolder, archiveFolder)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return transportErr("archive", src, err)
	}
	dst := path.Join(dir, name)
	if err := s.fs.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return transportErr("archive", src, ErrFileNotFound)
		}
		return transportErr("archive", src, err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := path.Join(s.responseFolder, name)
	if err := s.fs.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return transportErr("delete", p, ErrFileNotFound)
		}
		return transportErr("delete", p, err)
	}
	return nil
}
