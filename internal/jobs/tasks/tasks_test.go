package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/jobs"
	"github.com/dvloznov/gestapp/internal/notionsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	txs []*domain.Transaction
	err error
}

func (s stubLedger) List(context.Context, int64) ([]*domain.Transaction, error) {
	return s.txs, s.err
}

type stubSyncer struct {
	gotUser   int64
	gotDryRun bool
	gotCount  int
}

func (s *stubSyncer) SyncTransactions(_ context.Context, userID int64, txs []*domain.Transaction, dryRun bool) (notionsync.SyncResult, error) {
	s.gotUser, s.gotDryRun, s.gotCount = userID, dryRun, len(txs)
	return notionsync.SyncResult{Created: len(txs)}, nil
}

type stubBackup struct{ calls int }

func (s *stubBackup) Backup(_ context.Context, userID int64) (string, error) {
	s.calls++
	return "gs://bucket/backups/5/gestapp_backup_2024-01-01.csv", nil
}

type stubExporter struct{ rows int }

func (s *stubExporter) ExportTransactions(_ context.Context, _ int64, txs []*domain.Transaction) (string, error) {
	s.rows = len(txs)
	return "exp-1", nil
}

func twoTxs() []*domain.Transaction {
	return []*domain.Transaction{{ID: 1, UserID: 5}, {ID: 2, UserID: 5}}
}

func TestNotionSync(t *testing.T) {
	syncer := &stubSyncer{}
	h := NotionSync(stubLedger{txs: twoTxs()}, syncer)

	res, err := h(context.Background(), &jobs.Job{UserID: 5, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "created=2 updated=0 archived=0 failed=0", res)
	assert.Equal(t, int64(5), syncer.gotUser)
	assert.True(t, syncer.gotDryRun)
	assert.Equal(t, 2, syncer.gotCount)
}

func TestNotionSyncLedgerError(t *testing.T) {
	boom := errors.New("db down")
	_, err := NotionSync(stubLedger{err: boom}, &stubSyncer{})(context.Background(), &jobs.Job{UserID: 5})
	assert.ErrorIs(t, err, boom)
}

func TestBackupCSV(t *testing.T) {
	b := &stubBackup{}
	h := BackupCSV(b)

	res, err := h(context.Background(), &jobs.Job{UserID: 5, DryRun: true})
	require.NoError(t, err)
	assert.Contains(t, res, "dry run")
	assert.Zero(t, b.calls)

	res, err = h(context.Background(), &jobs.Job{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/backups/5/gestapp_backup_2024-01-01.csv", res)
	assert.Equal(t, 1, b.calls)
}

func TestAnalyticsExport(t *testing.T) {
	exp := &stubExporter{}
	h := AnalyticsExport(stubLedger{txs: twoTxs()}, exp)

	res, err := h(context.Background(), &jobs.Job{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, "export exp-1: 2 transactions", res)
	assert.Equal(t, 2, exp.rows)

	exp.rows = 0
	res, err = h(context.Background(), &jobs.Job{UserID: 5, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "dry run: 2 transactions would be exported", res)
	assert.Zero(t, exp.rows)
}

func TestRegisterOnlyConfigured(t *testing.T) {
	r := jobs.NewRouter()
	Register(r, Deps{Ledger: stubLedger{}, Backup: &stubBackup{}})

	assert.True(t, r.Supports(jobs.JobTypeBackupCSV))
	assert.False(t, r.Supports(jobs.JobTypeNotionSync))
	assert.False(t, r.Supports(jobs.JobTypeAnalyticsExport))
}
