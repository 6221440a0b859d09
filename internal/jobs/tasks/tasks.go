// Package tasks holds the job handlers that run a user's ledger through
// the external integrations.
package tasks

import (
	"context"
	"fmt"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/jobs"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/dvloznov/gestapp/internal/notionsync"
)

// Ledger lists a user's transactions.
type Ledger interface {
	List(ctx context.Context, userID int64) ([]*domain.Transaction, error)
}

// NotionSyncer mirrors transactions into Notion.
type NotionSyncer interface {
	SyncTransactions(ctx context.Context, userID int64, txs []*domain.Transaction, dryRun bool) (notionsync.SyncResult, error)
}

// BackupWriter uploads a CSV export and returns where it went.
type BackupWriter interface {
	Backup(ctx context.Context, userID int64) (string, error)
}

// AnalyticsExporter streams transactions into the warehouse.
type AnalyticsExporter interface {
	ExportTransactions(ctx context.Context, userID int64, txs []*domain.Transaction) (string, error)
}

// Deps are the integrations available to this process. Nil fields leave the
// matching job type unregistered.
type Deps struct {
	Ledger    Ledger
	Notion    NotionSyncer
	Backup    BackupWriter
	Analytics AnalyticsExporter
}

// Register binds a handler for every configured integration.
func Register(r *jobs.Router, d Deps) {
	if d.Notion != nil && d.Ledger != nil {
		r.Register(jobs.JobTypeNotionSync, NotionSync(d.Ledger, d.Notion))
	}
	if d.Backup != nil {
		r.Register(jobs.JobTypeBackupCSV, BackupCSV(d.Backup))
	}
	if d.Analytics != nil && d.Ledger != nil {
		r.Register(jobs.JobTypeAnalyticsExport, AnalyticsExport(d.Ledger, d.Analytics))
	}
}

// NotionSync mirrors the job owner's ledger into Notion.
func NotionSync(ledger Ledger, syncer NotionSyncer) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) (string, error) {
		txs, err := ledger.List(ctx, job.UserID)
		if err != nil {
			return "", fmt.Errorf("NotionSync: listing transactions: %w", err)
		}

		res, err := syncer.SyncTransactions(ctx, job.UserID, txs, job.DryRun)
		if err != nil {
			return "", fmt.Errorf("NotionSync: %w", err)
		}
		if res.Failed > 0 {
			log := logger.FromContext(ctx)
			log.Warn().Int("failed", res.Failed).Msg("Some Notion pages could not be written")
		}
		return res.String(), nil
	}
}

// BackupCSV uploads the job owner's CSV export.
func BackupCSV(b BackupWriter) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) (string, error) {
		if job.DryRun {
			return "dry run: no backup written", nil
		}
		uri, err := b.Backup(ctx, job.UserID)
		if err != nil {
			return "", err
		}
		return uri, nil
	}
}

// AnalyticsExport streams the job owner's ledger as a new snapshot.
func AnalyticsExport(ledger Ledger, exporter AnalyticsExporter) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) (string, error) {
		txs, err := ledger.List(ctx, job.UserID)
		if err != nil {
			return "", fmt.Errorf("AnalyticsExport: listing transactions: %w", err)
		}
		if job.DryRun {
			return fmt.Sprintf("dry run: %d transactions would be exported", len(txs)), nil
		}

		exportID, err := exporter.ExportTransactions(ctx, job.UserID, txs)
		if err != nil {
			return "", fmt.Errorf("AnalyticsExport: %w", err)
		}
		return fmt.Sprintf("export %s: %d transactions", exportID, len(txs)), nil
	}
}
