package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/dvloznov/gestapp/internal/transactions"
)

// Ledger is the part of the transaction service backups need.
type Ledger interface {
	ExportCSV(ctx context.Context, userID int64, w io.Writer) error
	ImportCSV(ctx context.Context, userID int64, r io.Reader) (*transactions.ImportResult, error)
}

// Service writes CSV exports to a bucket and restores them.
type Service struct {
	storage Storage
	ledger  Ledger
	bucket  string
	now     func() time.Time
}

// NewService creates a backup service writing to bucket.
func NewService(storage Storage, ledger Ledger, bucket string) *Service {
	return &Service{storage: storage, ledger: ledger, bucket: bucket, now: time.Now}
}

// ObjectName is "backups/<userId>/gestapp_backup_<date>.csv".
func ObjectName(userID int64, now time.Time) string {
	return "backups/" + strconv.FormatInt(userID, 10) + "/" + transactions.ExportFilename(now)
}

// Backup uploads the user's CSV export and returns its gs:// URI.
func (s *Service) Backup(ctx context.Context, userID int64) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("Backup: no bucket configured")
	}

	var buf bytes.Buffer
	if err := s.ledger.ExportCSV(ctx, userID, &buf); err != nil {
		return "", fmt.Errorf("Backup: exporting: %w", err)
	}

	object := ObjectName(userID, s.now())
	if err := s.storage.Upload(ctx, s.bucket, object, &buf); err != nil {
		return "", fmt.Errorf("Backup: %w", err)
	}

	uri := URI(s.bucket, object)
	log := logger.FromContext(ctx)
	log.Info().
		Int64("user_id", userID).
		Str("uri", uri).
		Msg("CSV backup uploaded")
	return uri, nil
}

// Restore imports the CSV at uri into the user's ledger with the same
// all-or-nothing rules as an upload.
func (s *Service) Restore(ctx context.Context, userID int64, uri string) (*transactions.ImportResult, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.storage.Download(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Restore: %w", err)
	}
	defer rc.Close()

	return s.ledger.ImportCSV(ctx, userID, rc)
}
