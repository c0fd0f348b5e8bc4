package threatintel

import (
	"fmt"
	"strconv"
	"strings"
)

// AbuseIPDB report categories, see https://www.abuseipdb.com/categories
var categoryNames = map[int]string{
	3:  "Fraud Orders",
	4:  "DDoS Attack",
	5:  "FTP Brute-Force",
	6:  "Ping of Death",
	7:  "Phishing",
	8:  "Fraud VoIP",
	9:  "Open Proxy",
	10: "Web Spam",
	11: "Email Spam",
	12: "Blog Spam",
	13: "VPN IP",
	14: "Port Scan",
	15: "Hacking",
	16: "SQL Injection",
	17: "Spoofing",
	18: "Brute-Force",
	19: "Bad Web Bot",
	20: "Exploited Host",
	21: "Web App Attack",
	22: "SSH",
	23: "IoT Targeted",
}

// Ports whose exposure to the internet is itself a finding
var riskyPorts = map[int]struct{}{
	22: {}, 23: {}, 135: {}, 139: {}, 445: {}, 1433: {},
	3306: {}, 3389: {}, 5432: {}, 5900: {}, 8080: {},
}

var suspiciousProducts = []string{"telnet", "ftp", "vnc", "rdp"}

// providerOrder is the order outcomes are folded in; threats follow it
var providerOrder = []string{ProviderVirusTotal, ProviderShodan, ProviderAbuseIPDB}

// CategoryName returns the display name of an AbuseIPDB category id
func CategoryName(id int) string {
	if name, ok := categoryNames[id]; ok {
		return name
	}
	return "Category " + strconv.Itoa(id)
}

// accumulator collects contributions while folding; score is unclamped
type accumulator struct {
	score      int
	detections int
	sources    int
	threats    []string
}

func (a *accumulator) add(points int, threat string) {
	a.score += points
	if threat != "" {
		a.threats = append(a.threats, threat)
	}
}

// Fold reduces provider outcomes to a single verdict. Outcomes are visited in
// the fixed provider order whatever order they are passed in, so the threat
// list is stable. Unavailable outcomes contribute nothing.
func Fold(outcomes []Outcome) Verdict {
	acc := &accumulator{threats: []string{}}

	for _, o := range orderOutcomes(outcomes) {
		signal, ok := o.Result.(Signal)
		if !ok {
			continue
		}
		acc.sources++

		switch s := signal.(type) {
		case *VirusTotalResult:
			foldVirusTotal(acc, s)
		case *ShodanResult:
			foldShodan(acc, s)
		case *AbuseIPDBResult:
			foldAbuseIPDB(acc, s)
		}
	}

	score := min(acc.score, maxRiskScore)
	return Verdict{
		RiskLevel:    LevelForScore(score),
		RiskScore:    score,
		Threats:      acc.threats,
		Detections:   acc.detections,
		TotalSources: acc.sources,
	}
}

// orderOutcomes returns a copy sorted by providerOrder. Unknown providers keep
// their relative order after the known ones.
func orderOutcomes(outcomes []Outcome) []Outcome {
	ordered := make([]Outcome, 0, len(outcomes))
	used := make([]bool, len(outcomes))
	for _, name := range providerOrder {
		for i, o := range outcomes {
			if !used[i] && o.Provider == name {
				ordered = append(ordered, o)
				used[i] = true
			}
		}
	}
	for i, o := range outcomes {
		if !used[i] {
			ordered = append(ordered, o)
		}
	}
	return ordered
}

func foldVirusTotal(acc *accumulator, r *VirusTotalResult) {
	if r == nil || !r.Found {
		return
	}

	if r.Malicious > 0 {
		acc.detections += r.Malicious
		acc.add(min(r.Malicious*8, 50),
			fmt.Sprintf("Detected as malicious by %d antivirus engines", r.Malicious))
	}

	if r.Suspicious > 0 {
		acc.detections += r.Suspicious
		acc.add(min(r.Suspicious*3, 20),
			fmt.Sprintf("Flagged as suspicious by %d engines", r.Suspicious))
	}

	if r.Reputation < 0 {
		acc.add(min(-r.Reputation/10, 15),
			fmt.Sprintf("Negative reputation score: %d", r.Reputation))
	}
}

func foldAbuseIPDB(acc *accumulator, r *AbuseIPDBResult) {
	if r == nil {
		return
	}

	score := r.AbuseConfidenceScore
	var narrative string
	switch {
	case score > 75:
		narrative = fmt.Sprintf("Very high abuse confidence: %d%%", score)
	case score > 50:
		narrative = fmt.Sprintf("High abuse confidence: %d%%", score)
	case score > 25:
		narrative = fmt.Sprintf("Moderate abuse reports: %d%%", score)
	}
	acc.add(max(min(score, 60), 0), narrative)

	if r.IsTor {
		acc.add(30, "Tor Exit Node detected")
	}

	if len(r.Categories) > 0 {
		names := make([]string, len(r.Categories))
		for i, id := range r.Categories {
			names[i] = CategoryName(id)
		}
		acc.add(len(r.Categories)*5, "Abuse categories: "+strings.Join(names, ", "))
	}

	switch {
	case r.TotalReports > 50:
		acc.add(10, fmt.Sprintf("%d abuse reports from %d users", r.TotalReports, r.NumDistinctUsers))
	case r.TotalReports > 10:
		acc.add(0, fmt.Sprintf("%d abuse reports reported", r.TotalReports))
	}
}

func foldShodan(acc *accumulator, r *ShodanResult) {
	if r == nil || !r.Found {
		return
	}

	if n := len(r.Vulns); n > 0 {
		acc.add(min(n*12, 40), fmt.Sprintf("%d known vulnerabilities found", n))
	}

	var exposed []string
	for _, port := range r.Ports {
		if _, ok := riskyPorts[port]; ok {
			exposed = append(exposed, strconv.Itoa(port))
		}
	}
	if len(exposed) > 0 {
		acc.add(2*len(exposed), "Risky ports open: "+strings.Join(exposed, ", "))
	}

	if len(r.Ports) > 20 {
		acc.add(5, fmt.Sprintf("Many open ports detected (%d) - possible misconfiguration", len(r.Ports)))
	}

	var products []string
	for _, svc := range r.Services {
		if isSuspiciousProduct(svc.Product) {
			products = append(products, svc.Product)
		}
	}
	if len(products) > 0 {
		acc.add(3*len(products), "Suspicious services detected: "+strings.Join(products, ", "))
	}
}

func isSuspiciousProduct(product string) bool {
	p := strings.ToLower(product)
	for _, needle := range suspiciousProducts {
		if strings.Contains(p, needle) {
			return true
		}
	}
	return false
}
