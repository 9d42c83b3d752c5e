package domain

type ZoneConfidence string

const (
	ZoneLow    ZoneConfidence = "low"
	ZoneMedium ZoneConfidence = "medium"
	ZoneHigh   ZoneConfidence = "high"
)

type ZoneSource string

const (
	ZoneSourceNone    ZoneSource = "none"
	ZoneSourceContext ZoneSource = "context"
	ZoneSourceTable   ZoneSource = "known-table"
	ZoneSourceBoth    ZoneSource = "both"
)

type ResolvedZoneSet struct {
	SectorsMatching []string       `json:"sectors_matching"`
	SectorsExcluded []string       `json:"sectors_excluded"`
	Confidence      ZoneConfidence `json:"confidence"`
	Source          ZoneSource     `json:"source"`
}

func (z *ResolvedZoneSet) Empty() bool {
	return z == nil || (len(z.SectorsMatching) == 0 && len(z.SectorsExcluded) == 0)
}
