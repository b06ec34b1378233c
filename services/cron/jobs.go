package cron

import (
	"context"
	"fmt"
	"time"
)

// ArchivePastSessions retires every active session whose scheduled date
// is behind us. Runs nightly so the catalog only offers future dates.
func (m *CronManager) ArchivePastSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "archive_past_sessions"

	// Sessions earlier today may still be running, only archive
	// strictly before midnight.
	now := time.Now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	archived, err := m.courses.ArchivePastSessions(ctx, cutoff)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to archive sessions: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Archived %d past sessions", archived))
}

// CleanupExpiredTokens purges blacklist entries whose tokens have
// already expired on their own.
func (m *CronManager) CleanupExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobName := "cleanup_expired_tokens"

	removed, err := m.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to cleanup tokens: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Removed %d expired blacklist entries", removed))
}

// TrimChangeFeed drops change events older than the retention window.
// Pollers that fall further behind than that must do a full re-sync.
func (m *CronManager) TrimChangeFeed() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "trim_change_feed"

	cutoff := time.Now().UTC().AddDate(0, 0, -m.retentionDays)
	trimmed, err := m.feed.TrimOlderThan(ctx, cutoff)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to trim change feed: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Trimmed %d change events older than %s", trimmed, cutoff.Format("2006-01-02")))
}
