package sqlcgen

import "time"

type RegionDetail struct {
	ScenarioKey string
	RegionID    int32
	ScenarioID  string
	Payload     []byte
	FetchedAt   time.Time
}

type RegionDetailSummary struct {
	ScenarioKey string
	RegionID    int32
	ScenarioID  string
	FetchedAt   time.Time
	SizeBytes   int32
}
