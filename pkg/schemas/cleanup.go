package schemas

import (
	"hash/crc32"
	"strconv"
	"time"
)

// CleanupReport is produced by the retention cleanup engine. Every version the
// engine considered belongs to exactly one of the three sets: Kept always
// contains the currently deployed version plus up to keep_previous_count of
// its most recent predecessors, Deleted the versions successfully removed,
// Failed the versions whose deletion exhausted its retry budget.
type CleanupReport struct {
	ModelName      string    // Full model name the cleanup ran against
	EndpointName   string    // Endpoint the current version is deployed on
	CurrentVersion int       // The version currently being served
	Kept           []int     // Versions retained by the policy
	Deleted        []int     // Versions removed this run
	Failed         []int     // Versions whose deletion failed after all attempts
	CompletedAt    time.Time // When the cleanup run finished
}

// CleanupReportKey is a unique identifier for a cleanup report.
type CleanupReportKey string

// Key generates a unique key for a CleanupReport using a CRC32 checksum of
// the model name, current version and completion time.
func (cr CleanupReport) Key() CleanupReportKey {
	return CleanupReportKey(strconv.Itoa(int(crc32.ChecksumIEEE(
		[]byte(cr.ModelName + strconv.Itoa(cr.CurrentVersion) + cr.CompletedAt.UTC().Format(time.RFC3339)),
	))))
}

// CleanupReports is a map used to keep track of cleanup runs.
type CleanupReports map[CleanupReportKey]CleanupReport

// Count returns the number of recorded cleanup reports.
func (crs CleanupReports) Count() int {
	return len(crs)
}
