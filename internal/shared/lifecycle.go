package shared

import "fmt"

// RecordStatus is the lifecycle state stored in every entity's status column.
type RecordStatus string

const (
	// RecordActive marks rows visible to every read path.
	RecordActive RecordStatus = "ACTIVE"
	// RecordDeleted marks soft deleted rows. They are never physically removed.
	RecordDeleted RecordStatus = "DELETED"
)

// ActiveOnly returns the predicate selecting live rows for the given table alias.
// Pass an empty alias for unqualified queries.
func ActiveOnly(alias string) string {
	if alias == "" {
		return fmt.Sprintf("status = '%s'", RecordActive)
	}
	return fmt.Sprintf("%s.status = '%s'", alias, RecordActive)
}
