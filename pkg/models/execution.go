package models

// PlanExecution is the append-only audit row written for every dispatch
// attempt (spec §3, §4.H). Its id is a ulid; the execution timestamp is
// derived from that ulid rather than stored separately.
type PlanExecution struct {
	ID                 string `db:"id" json:"id"`
	PlanDBID           int64  `db:"plan_db_id" json:"plan_db_id"`
	PlanID             string `db:"plan_id" json:"plan_id"`
	PlanItemJSON       string `db:"plan_item_json" json:"plan_item_json"`
	MetricValuesJSON   string `db:"metric_values_json" json:"metric_values_json"`
	MetadataValuesJSON string `db:"metadata_values_json" json:"metadata_values_json"`
	FailMessage        string `db:"fail_message" json:"fail_message,omitempty"`
}

// Failed reports whether any component in this execution reported an error.
func (e PlanExecution) Failed() bool {
	return e.FailMessage != ""
}
