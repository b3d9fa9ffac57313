// Package transactions journals the contracts users buy through the charts.
//
// Rows are unique on (user_id, contract_id): re-posting a contract updates
// it in place, keeping the run id, the JSON annotations and the chart image
// when the update leaves them out. Upserts are sent as one pgx.Batch.
//
// Each transaction can have any number of analysis results. SaveAnalysis
// writes the transaction and a new result in one statement; LatestAnalysis
// reads back the newest.
package transactions
