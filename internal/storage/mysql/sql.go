package mysql

// Re-recording a request id keeps the first row.
const insertRunSQL = `
INSERT INTO search_runs
  (request_id, vertical, query_hash, results, rejected, valid_listings,
   insufficient, cache_hit, duration_ms, diagnostics, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE request_id = request_id
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getRunSQL = `
SELECT
  request_id, vertical, query_hash, results, rejected, valid_listings,
  insufficient, cache_hit, duration_ms, diagnostics, created_at
FROM search_runs
WHERE request_id = ?
`
