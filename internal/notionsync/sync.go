package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is the page size used when listing the mirror database.
const BatchSize = 100

// SyncResult counts what a sync did, or would do in a dry run.
type SyncResult struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("created=%d updated=%d archived=%d failed=%d", r.Created, r.Updated, r.Archived, r.Failed)
}

// Syncer mirrors ledgers into one Notion database. Pages are keyed by
// ExternalID, so several users can share the database.
type Syncer struct {
	client     NotionService
	databaseID string
}

// NewSyncer creates a Syncer for databaseID.
func NewSyncer(client NotionService, databaseID string) *Syncer {
	return &Syncer{client: client, databaseID: databaseID}
}

// SyncTransactions makes the user's pages match txs: pages for deleted
// transactions are archived, existing ones updated and missing ones created.
// Per-page failures are logged and counted; only listing the database is fatal.
func (s *Syncer) SyncTransactions(ctx context.Context, userID int64, txs []*domain.Transaction, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult

	log.Info().
		Int64("user_id", userID).
		Int("transaction_count", len(txs)).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	pages, err := s.queryAllPages(ctx)
	if err != nil {
		return res, fmt.Errorf("SyncTransactions: %w", err)
	}

	// external id -> page id, only for this user's pages
	existing := make(map[string]string)
	for _, page := range pages {
		extID := extractTransactionID(page)
		owner, _, err := parseExternalID(extID)
		if err != nil || owner != userID {
			continue
		}
		existing[extID] = string(page.ID)
	}

	current := make(map[string]bool, len(txs))
	for _, tx := range txs {
		current[ExternalID(tx)] = true
	}

	for extID, pageID := range existing {
		if current[extID] {
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", extID).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := s.client.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("transaction_id", extID).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, tx := range txs {
		extID := ExternalID(tx)
		pageID, found := existing[extID]

		if dryRun {
			if found {
				res.Updated++
			} else {
				res.Created++
			}
			continue
		}

		props := TransactionToNotionProperties(tx)
		if found {
			if _, err := s.client.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", extID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := s.client.CreatePage(ctx, s.databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", extID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("transaction_id", extID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int64("user_id", userID).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Transaction sync completed")

	return res, nil
}

// queryAllPages lists every page of the database, following cursors.
func (s *Syncer) queryAllPages(ctx context.Context) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: BatchSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := s.client.QueryDatabase(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
