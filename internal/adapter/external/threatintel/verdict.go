package threatintel

// RiskLevel is the coarse classification of a RiskScore
type RiskLevel string

const (
	RiskClean  RiskLevel = "Clean"
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

const maxRiskScore = 100

// Verdict is the folded decision for one query
type Verdict struct {
	RiskLevel    RiskLevel `json:"riskLevel"`
	RiskScore    int       `json:"riskScore"`
	Threats      []string  `json:"threats"`
	Detections   int       `json:"detections"`
	TotalSources int       `json:"totalSources"`
}

// LevelForScore converts a 0-100 score to a risk level
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	case score > 0:
		return RiskLow
	default:
		return RiskClean
	}
}
