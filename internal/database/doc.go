// Package database provides SQLite-based storage for scrape history.
//
// Every scrape, successful or not, is stored as one row of the scrapes
// table: the page URL, when it was scraped, the pipeline state reached,
// the content hash, defect counts per audit category and the full report
// as JSON. Comparing the latest hash with an earlier one shows whether a
// newsletter page changed between scrapes.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. The database is a single file in the XDG data directory
// 2. The CGO-free driver keeps cross-compilation simple
// 3. WAL mode lets a history query run while a scan is writing
package database
