package model

import "time"

// Priority holds derived relevance scores for one bill. Scores are 0-100.
// Once ManuallyReviewed is set the scores are locked: automated persist
// cycles must never change them.
type Priority struct {
	BillID            string    `json:"bill_id"`
	HealthRelevance   int       `json:"health_relevance"`
	LocalGovRelevance int       `json:"local_gov_relevance"`
	OverallPriority   int       `json:"overall_priority"`
	AutoCategorized   bool      `json:"auto_categorized"`
	ManuallyReviewed  bool      `json:"manually_reviewed"`
	AutoCategories    []string  `json:"auto_categories"`
	UpdatedAt         time.Time `json:"updated_at"`
}
