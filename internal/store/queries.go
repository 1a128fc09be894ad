// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package store

const (
	statsByStatusAndPriority = `
		SELECT
			sync_status,
			priority,
			COUNT(*)
		FROM sync_queue
		GROUP BY sync_status, priority;`

	statsAverageQueueTime = `
		SELECT AVG((julianday('now') - julianday(enqueued_at)) * 86400.0)
		FROM sync_queue
		WHERE sync_status != 'synced';`
)
