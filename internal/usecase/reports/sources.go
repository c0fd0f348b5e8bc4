package reports

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
)

const maxFactLength = 90

var providerTitles = map[string]string{
	threatintel.ProviderVirusTotal: "VirusTotal",
	threatintel.ProviderShodan:     "Shodan",
	threatintel.ProviderAbuseIPDB:  "AbuseIPDB",
}

// Fact is one labelled value shown for a source
type Fact struct {
	Label string
	Value string
}

// SourceSection is the rendered view of one provider outcome
type SourceSection struct {
	Provider    string
	Title       string
	Unavailable string
	Facts       []Fact
}

// sourceSections flattens raw source payloads into display rows, known
// providers first
func sourceSections(sources map[string]json.RawMessage) []SourceSection {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := providerRank(names[i]), providerRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	sections := make([]SourceSection, 0, len(names))
	for _, name := range names {
		sections = append(sections, buildSection(name, sources[name]))
	}
	return sections
}

func providerRank(name string) int {
	switch name {
	case threatintel.ProviderVirusTotal:
		return 0
	case threatintel.ProviderShodan:
		return 1
	case threatintel.ProviderAbuseIPDB:
		return 2
	}
	return 3
}

func buildSection(name string, raw json.RawMessage) SourceSection {
	section := SourceSection{Provider: name, Title: providerTitles[name]}
	if section.Title == "" {
		section.Title = name
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		section.Unavailable = "unreadable source data"
		return section
	}

	if msg, ok := fields["error"].(string); ok {
		section.Unavailable = msg
		if reason, ok := fields["reason"].(string); ok && reason != "" {
			section.Unavailable = fmt.Sprintf("%s (%s)", msg, reason)
		}
		return section
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, ok := formatValue(fields[k])
		if !ok {
			continue
		}
		section.Facts = append(section.Facts, Fact{Label: k, Value: truncate(value, maxFactLength)})
	}
	return section
}

// formatValue renders scalars and lists of scalars. Nested objects are
// skipped, lists of objects are reduced to a count.
func formatValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case bool:
		if val {
			return "Yes", true
		}
		return "No", true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case []any:
		if len(val) == 0 {
			return "None", true
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := formatValue(item)
			if !ok {
				return fmt.Sprintf("%d entries", len(val)), true
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), true
	}
	return "", false
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
