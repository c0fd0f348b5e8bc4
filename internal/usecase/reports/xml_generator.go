package reports

import (
	"encoding/xml"
	"fmt"
	"time"
)

const xmlReportVersion = "1.0"

// XMLGenerator generates XML reports
type XMLGenerator struct{}

// NewXMLGenerator creates a new XML generator
func NewXMLGenerator() *XMLGenerator {
	return &XMLGenerator{}
}

// XMLReport represents the root XML structure
type XMLReport struct {
	XMLName     xml.Name    `xml:"ThreatReport"`
	Version     string      `xml:"version,attr"`
	GeneratedAt string      `xml:"generatedAt,attr"`
	Lookup      XMLLookup   `xml:"Lookup"`
	Assessment  XMLRisk     `xml:"Assessment"`
	Sources     []XMLSource `xml:"Sources>Source"`
}

// XMLLookup identifies the analyzed indicator
type XMLLookup struct {
	ID         string `xml:"id,attr,omitempty"`
	Query      string `xml:"Query"`
	Type       string `xml:"Type"`
	AnalyzedAt string `xml:"AnalyzedAt,omitempty"`
}

// XMLRisk contains the aggregated verdict
type XMLRisk struct {
	RiskLevel    string   `xml:"RiskLevel"`
	RiskScore    int      `xml:"RiskScore"`
	Detections   int      `xml:"Detections"`
	TotalSources int      `xml:"TotalSources"`
	Threats      []string `xml:"Threats>Threat"`
}

// XMLSource is one provider's contribution
type XMLSource struct {
	Provider    string    `xml:"provider,attr"`
	Available   bool      `xml:"available,attr"`
	Unavailable string    `xml:"Unavailable,omitempty"`
	Facts       []XMLFact `xml:"Field"`
}

// XMLFact is a labelled value
type XMLFact struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Generate creates an XML report from the lookup
func (g *XMLGenerator) Generate(data *ReportData) ([]byte, error) {
	report := XMLReport{
		Version:     xmlReportVersion,
		GeneratedAt: data.GeneratedAt.Format(time.RFC3339),
		Lookup: XMLLookup{
			ID:    data.ID,
			Query: data.Query,
			Type:  data.Type,
		},
		Assessment: XMLRisk{
			RiskLevel:    string(data.Aggregated.RiskLevel),
			RiskScore:    data.Aggregated.RiskScore,
			Detections:   data.Aggregated.Detections,
			TotalSources: data.Aggregated.TotalSources,
			Threats:      data.Aggregated.Threats,
		},
	}
	if !data.Timestamp.IsZero() {
		report.Lookup.AnalyzedAt = data.Timestamp.UTC().Format(time.RFC3339)
	}

	for _, section := range sourceSections(data.Sources) {
		src := XMLSource{
			Provider:    section.Provider,
			Available:   section.Unavailable == "",
			Unavailable: section.Unavailable,
		}
		for _, f := range section.Facts {
			src.Facts = append(src.Facts, XMLFact{Name: f.Label, Value: f.Value})
		}
		report.Sources = append(report.Sources, src)
	}

	output, err := xml.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to generate XML: %w", err)
	}

	return append([]byte(xml.Header), output...), nil
}
