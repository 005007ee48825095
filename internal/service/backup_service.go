package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/repository"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/storage"
)

const (
	backupPrefix     = "backup_"
	manifestFilename = "manifest.json"
)

// BackupFile records the checksum of one file in a backup.
type BackupFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// BackupManifest describes a backup directory.
type BackupManifest struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	Files     []BackupFile `json:"files"`
	Signature string       `json:"signature,omitempty"`
}

// BackupInfo is a listed backup.
type BackupInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupConfig tunes backup behaviour.
type BackupConfig struct {
	RetentionDays int
}

// BackupService writes and restores signed CSV backups of the record store.
type BackupService struct {
	store   snapshotStore
	storage *storage.LocalStorage
	signer  *storage.Signer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     BackupConfig
	now     func() time.Time
}

// NewBackupService constructs the backup service. A nil signer leaves
// manifests unsigned.
func NewBackupService(store snapshotStore, files *storage.LocalStorage, signer *storage.Signer, cfg BackupConfig, metrics *MetricsService, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{store: store, storage: files, signer: signer, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Create writes the store as CSV files plus a signed manifest into a new
// backup directory.
func (s *BackupService) Create(ctx context.Context) (*BackupManifest, error) {
	start := time.Now()
	created := s.now().UTC()
	name := fmt.Sprintf("%s%s_%03d", backupPrefix, created.Format("20060102_150405"), created.Nanosecond()/int(time.Millisecond))

	repo := repository.NewCSVRecordRepository(s.storage.Path(name))
	if err := repo.Save(ctx, s.store.Snapshot()); err != nil {
		s.logger.Error("backup write failed", zap.String("backup", name), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to write backup")
	}

	manifest := &BackupManifest{ID: uuid.NewString(), Name: name, CreatedAt: created}
	for _, file := range []string{repository.StudentsFile, repository.CoursesFile, repository.EnrollmentsFile} {
		sum, err := s.storage.Checksum(path.Join(name, file))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to checksum backup")
		}
		manifest.Files = append(manifest.Files, BackupFile{Name: file, SHA256: sum})
	}
	if s.signer != nil {
		signature, err := s.signer.Sign(manifestPayload(manifest))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to sign backup manifest")
		}
		manifest.Signature = signature
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to encode backup manifest")
	}
	if _, err := s.storage.Save(path.Join(name, manifestFilename), data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to write backup manifest")
	}

	s.metrics.ObservePersistence("backup", time.Since(start))
	s.logger.Info("backup created", zap.String("backup", name), zap.String("id", manifest.ID))
	return manifest, nil
}

// manifestPayload is the signed form of a manifest: everything but the
// signature itself.
func manifestPayload(m *BackupManifest) []byte {
	unsigned := *m
	unsigned.Signature = ""
	data, _ := json.Marshal(unsigned)
	return data
}

// List returns the available backups, newest first.
func (s *BackupService) List(ctx context.Context) ([]BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.storage.Entries()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to list backups")
	}
	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir || !strings.HasPrefix(entry.Name, backupPrefix) {
			continue
		}
		backups = append(backups, BackupInfo{Name: entry.Name, CreatedAt: entry.ModTime})
	}
	return backups, nil
}

// Verify checks the manifest signature and every file checksum of a backup.
func (s *BackupService) Verify(ctx context.Context, name string) (*BackupManifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(name, backupPrefix) || strings.ContainsAny(name, `/\`) || !s.storage.Exists(name) {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "backup %s not found", name)
	}
	data, err := s.storage.ReadFile(path.Join(name, manifestFilename))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "backup manifest unreadable")
	}
	var manifest BackupManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "backup manifest malformed")
	}
	if s.signer != nil {
		if err := s.signer.Verify(manifestPayload(&manifest), manifest.Signature); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "backup manifest signature mismatch")
		}
	}
	for _, file := range manifest.Files {
		sum, err := s.storage.Checksum(path.Join(name, file.Name))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "backup file missing")
		}
		if sum != file.SHA256 {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "backup file %s checksum mismatch", file.Name)
		}
	}
	return &manifest, nil
}

// Restore verifies a backup and replaces the store content with it.
func (s *BackupService) Restore(ctx context.Context, name string) (*BackupManifest, error) {
	start := time.Now()
	manifest, err := s.Verify(ctx, name)
	if err != nil {
		s.logger.Warn("backup verification failed", zap.String("backup", name), zap.Error(err))
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, repository.NewCSVRecordRepository(s.storage.Path(name)))
	if err != nil {
		return nil, err
	}
	s.store.Replace(snapshot)
	s.metrics.ObservePersistence("restore", time.Since(start))
	s.logger.Info("backup restored", zap.String("backup", name), zap.String("id", manifest.ID))
	return manifest, nil
}

// Prune deletes backups older than the retention window.
func (s *BackupService) Prune(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.RetentionDays <= 0 {
		return nil, nil
	}
	deleted, err := s.storage.CleanupOlderThan(time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
	if err != nil {
		return deleted, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to prune backups")
	}
	if len(deleted) > 0 {
		s.logger.Info("backups pruned", zap.Strings("backups", deleted))
	}
	return deleted, nil
}
