package envelope

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kindlyrobotics/qshare/internal/models"
)

// pendingLog is one file_logs row staged during IngestUpload, inserted in
// a single transaction once every per-file step (§5 ordering rule) has
// succeeded.
type pendingLog struct {
	fileID string
	name   string
	size   int64
}

// insertFileLogs writes one file_logs row per pending entry inside a single
// transaction, as required by the upload ordering rule: either every row
// for this upload lands, or none do.
func insertFileLogs(ctx context.Context, db *sql.DB, from, to string, expiry time.Time, downloadCount int, anonymous bool, pending []pendingLog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("envelope: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, p := range pending {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO file_logs
				(public_id, file_id, name, size, from_identity, to_identity,
				 sent_on, expiry, download_count, remaining_downloads, is_anonymous, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'active')
		`,
			uuid.New(), p.fileID, p.name, p.size, from, to,
			now, expiry, downloadCount, downloadCount, anonymous,
		)
		if err != nil {
			return fmt.Errorf("envelope: insert file_log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("envelope: commit file_logs: %w", err)
	}
	return nil
}

// findFileLog loads the file_logs row with the given public_id into a
// models.FileLog, returning ErrNotFound when there is no such row.
func findFileLog(ctx context.Context, db *sql.DB, publicID uuid.UUID) (*models.FileLog, error) {
	var f models.FileLog
	var status string
	err := db.QueryRowContext(ctx, `
		SELECT public_id, file_id, name, size, from_identity, to_identity,
		       sent_on, expiry, download_count, remaining_downloads, is_anonymous, status
		FROM file_logs
		WHERE public_id = $1
	`, publicID).Scan(
		&f.PublicID, &f.FileID, &f.Name, &f.Size, &f.FromIdentity, &f.ToIdentity,
		&f.SentOn, &f.Expiry, &f.DownloadCount, &f.RemainingDownloads, &f.IsAnonymous, &status,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: find file_log: %w", err)
	}
	f.Status = models.FileStatus(status)
	return &f, nil
}

// decrementDownload atomically decrements remaining_downloads, refusing to
// go below zero. Returns false if the row had already hit zero (a
// concurrent download beat this one to the last slot).
func decrementDownload(ctx context.Context, db *sql.DB, publicID uuid.UUID) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE file_logs
		SET remaining_downloads = remaining_downloads - 1, updated_at = NOW()
		WHERE public_id = $1 AND remaining_downloads > 0
	`, publicID)
	if err != nil {
		return false, fmt.Errorf("envelope: decrement download: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("envelope: decrement download: %w", err)
	}
	return n > 0, nil
}

func listActivity(ctx context.Context, db *sql.DB, identity string) ([]models.ActivityEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT from_identity, to_identity, is_anonymous
		FROM file_logs
		WHERE from_identity = $1 OR to_identity = $1
		ORDER BY sent_on DESC
		LIMIT 10
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("envelope: list activity: %w", err)
	}
	defer rows.Close()

	var out []models.ActivityEntry
	for rows.Next() {
		var from, to string
		var anon bool
		if err := rows.Scan(&from, &to, &anon); err != nil {
			return nil, fmt.Errorf("envelope: scan activity: %w", err)
		}
		entry := models.ActivityEntry{Direction: "receive", Counterparty: from}
		if from == identity {
			entry.Direction = "send"
			entry.Counterparty = to
		}
		if anon {
			entry.Counterparty = "*"
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func listReceived(ctx context.Context, db *sql.DB, identity string) ([]models.ReceivedEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT public_id, name, size, from_identity, sent_on, expiry, remaining_downloads, is_anonymous
		FROM file_logs
		WHERE to_identity = $1 AND status = 'active' AND expiry > NOW()
		ORDER BY sent_on DESC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("envelope: list received: %w", err)
	}
	defer rows.Close()

	var out []models.ReceivedEntry
	for rows.Next() {
		var publicID uuid.UUID
		var from string
		var sentOn, expiry time.Time
		var anon bool
		var e models.ReceivedEntry
		if err := rows.Scan(&publicID, &e.Name, &e.Size, &from, &sentOn, &expiry, &e.RemainingDownloads, &anon); err != nil {
			return nil, fmt.Errorf("envelope: scan received: %w", err)
		}
		e.FileID = publicID.String()
		e.ReceivedOn = sentOn.Format(time.RFC3339)
		e.Expiry = expiry.Format(time.RFC3339)
		e.ReceivedFrom = from
		if anon {
			e.ReceivedFrom = "*"
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func listShared(ctx context.Context, db *sql.DB, identity string) ([]models.SharedEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT public_id, name, size, to_identity, sent_on, expiry, download_count, is_anonymous
		FROM file_logs
		WHERE from_identity = $1 AND status = 'active' AND expiry > NOW()
		ORDER BY sent_on DESC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("envelope: list shared: %w", err)
	}
	defer rows.Close()

	var out []models.SharedEntry
	for rows.Next() {
		var publicID uuid.UUID
		var to string
		var sentOn, expiry time.Time
		var anon bool
		var e models.SharedEntry
		if err := rows.Scan(&publicID, &e.Name, &e.Size, &to, &sentOn, &expiry, &e.DownloadCount, &anon); err != nil {
			return nil, fmt.Errorf("envelope: scan shared: %w", err)
		}
		e.FileID = publicID.String()
		e.SentOn = sentOn.Format(time.RFC3339)
		e.Expiry = expiry.Format(time.RFC3339)
		e.SentTo = to
		if anon {
			e.SentTo = "*"
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
