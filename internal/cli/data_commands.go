package cli

import (
	"context"
	"strconv"

	"github.com/noah-isme/campus-records/internal/service"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/export"
	"github.com/noah-isme/campus-records/pkg/logger"
)

func (s *Shell) export(ctx context.Context, args []string) error {
	if s.svc.Exports == nil {
		return notConfigured("export storage")
	}
	if err := requireArgs(args, 2, "export <students|courses|enrollments> <csv|pdf>"); err != nil {
		return err
	}
	kind, err := service.ParseExportKind(args[0])
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(args[1])
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid export format")
	}
	result, err := s.svc.Exports.Export(ctx, kind, format)
	if err != nil {
		return err
	}
	s.showExport(result)
	return nil
}

func (s *Shell) save(ctx context.Context, _ []string) error {
	if s.svc.Persistence == nil {
		return notConfigured("persistence")
	}
	if err := s.svc.Persistence.Save(ctx); err != nil {
		return err
	}
	s.out.show(map[string]string{"status": "saved"}, func() { s.out.line("Records saved.") })
	return nil
}

func (s *Shell) load(ctx context.Context, _ []string) error {
	if s.svc.Persistence == nil {
		return notConfigured("persistence")
	}
	snapshot, err := s.svc.Persistence.Load(ctx)
	if err != nil {
		return err
	}
	s.purgeReports(ctx)
	counts := map[string]int{
		"students":    len(snapshot.Students),
		"courses":     len(snapshot.Courses),
		"enrollments": len(snapshot.Enrollments),
	}
	s.out.show(counts, func() {
		s.out.line("Loaded %d student(s), %d course(s), %d enrollment(s).", counts["students"], counts["courses"], counts["enrollments"])
	})
	return nil
}

// backupResult is the JSON shape of the backup command.
type backupResult struct {
	Backup *service.BackupManifest `json:"backup"`
	Pruned []string                `json:"pruned,omitempty"`
}

func (s *Shell) backup(ctx context.Context, _ []string) error {
	if s.svc.Backups == nil {
		return notConfigured("backups")
	}
	manifest, err := s.svc.Backups.Create(ctx)
	if err != nil {
		return err
	}
	pruned, err := s.svc.Backups.Prune(ctx)
	if err != nil {
		s.logger.Warn("backup prune failed", logger.ErrorFields(err)...)
	}
	result := backupResult{Backup: manifest, Pruned: pruned}
	s.out.show(result, func() {
		s.out.line("Backup %s written (%d file(s)).", manifest.Name, len(manifest.Files))
		if len(pruned) > 0 {
			s.out.line("Pruned %d old backup(s).", len(pruned))
		}
	})
	return nil
}

func (s *Shell) backups(ctx context.Context, _ []string) error {
	if s.svc.Backups == nil {
		return notConfigured("backups")
	}
	list, err := s.svc.Backups.List(ctx)
	if err != nil {
		return err
	}
	s.out.show(list, func() {
		rows := make([][]string, 0, len(list))
		for _, b := range list {
			rows = append(rows, []string{b.Name, b.CreatedAt.Format("2006-01-02 15:04:05")})
		}
		s.out.table([]string{"BACKUP", "CREATED"}, rows)
	})
	return nil
}

func (s *Shell) restore(ctx context.Context, args []string) error {
	if s.svc.Backups == nil {
		return notConfigured("backups")
	}
	if err := requireArgs(args, 1, "restore <backup-name>"); err != nil {
		return err
	}
	manifest, err := s.svc.Backups.Restore(ctx, args[0])
	if err != nil {
		return err
	}
	s.purgeReports(ctx)
	s.out.show(manifest, func() { s.out.line("Restored %s.", manifest.Name) })
	return nil
}

func (s *Shell) metrics(_ context.Context, _ []string) error {
	if s.svc.Metrics == nil {
		return notConfigured("metrics")
	}
	snap := s.svc.Metrics.Snapshot()
	s.out.show(snap, func() {
		s.out.fields([][2]string{
			{"Students", formatInt(snap.Students)},
			{"Courses", formatInt(snap.Courses)},
			{"Enrollments", formatInt(snap.Enrollments)},
			{"Cache hits", strconv.FormatUint(snap.CacheHits, 10)},
			{"Cache misses", strconv.FormatUint(snap.CacheMisses, 10)},
			{"Cache hit ratio", formatGPA(snap.CacheHitRatio)},
		})
		rows := make([][]string, 0, len(snap.Operations))
		for _, name := range snap.OperationNames() {
			rows = append(rows, []string{name, strconv.FormatUint(snap.Operations[name], 10), strconv.FormatUint(snap.Failures[name], 10)})
		}
		s.out.table([]string{"OPERATION", "CALLS", "FAILURES"}, rows)
	})
	return nil
}

// purgeReports clears cached reports after the store was replaced. A failure
// only costs cache space, so it is logged and not returned.
func (s *Shell) purgeReports(ctx context.Context) {
	if err := s.svc.Reports.PurgeCache(ctx); err != nil {
		s.logger.Warn("report cache purge failed", logger.ErrorFields(err)...)
	}
}
