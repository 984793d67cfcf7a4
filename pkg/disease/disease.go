package disease

import "sort"

// Severity is a coarse risk tier attached to a label for display
type Severity int

const (
	Low Severity = iota
	Medium
	High
)

// String returns the lowercase tier name
func (s Severity) String() string {
	switch s {
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "low"
	}
}

// MarshalText lets severities appear as strings in JSON output
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Info holds the static description and remedy for a label
type Info struct {
	Description string   `json:"description,omitempty"`
	Remedy      string   `json:"remedy,omitempty"`
	Severity    Severity `json:"severity"`
}

// table is never mutated after init
var table = map[string]Info{
	"Healthy": {
		Description: "Leaf is normal and disease-free.",
		Remedy:      "No action needed. Continue regular monitoring.",
		Severity:    Low,
	},
	"Early Blight": {
		Description: "Brown spots with yellow edges and concentric rings.",
		Remedy:      "Remove affected leaves, rotate crops, fungicide if necessary.",
		Severity:    Medium,
	},
	"Late Blight": {
		Description: "Caused by Phytophthora infestans. Large, dark lesions.",
		Remedy:      "Remove infected plants, use fungicide, avoid wet conditions.",
		Severity:    High,
	},
}

// Lookup returns the info for a label. Unknown labels get the lowest
// severity and empty text, with ok set to false.
func Lookup(label string) (info Info, ok bool) {
	info, ok = table[label]
	if !ok {
		return Info{Severity: Low}, false
	}
	return info, true
}

// Labels returns the known labels in sorted order
func Labels() []string {
	labels := make([]string, 0, len(table))
	for k := range table {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}
