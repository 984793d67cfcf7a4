package templates

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/disease"
	"github.com/pdxmph/leafscan/pkg/preview"
	"github.com/pdxmph/leafscan/pkg/session"
)

func entry(label string) session.Entry {
	info, known := disease.Lookup(label)
	return session.Entry{
		Result: classify.Result{
			Name:       "field-3.leaf.jpg",
			Label:      label,
			Confidence: "87.35",
			Preview:    preview.Ref{ID: "x", Path: "/tmp/x.jpg"},
		},
		Info:  info,
		Known: known,
	}
}

func TestProcessTextTemplate(t *testing.T) {
	vars := BuildVariables(entry("Late Blight"))
	out := Process("%filename%: %label% (%confidence%%) [%severity%]", vars)
	require.Equal(t, "field-3.leaf: Late Blight (87.35%) [high]", out)
}

func TestProcessFallbackChain(t *testing.T) {
	vars := BuildVariables(entry("Unknown Rot"))
	require.Equal(t, "Unknown Rot", Process("%description|remedy|label%", vars))

	vars = BuildVariables(entry("Healthy"))
	require.Equal(t, "Leaf is normal and disease-free.", Process("%description|label%", vars))
}

func TestProcessUnknownVariable(t *testing.T) {
	vars := BuildVariables(entry("Healthy"))
	require.Equal(t, "[]", Process("[%photo_id%]", vars))
	require.Equal(t, "100% sure", Process("100% sure", vars))
}

func TestPreviewVariable(t *testing.T) {
	vars := BuildVariables(entry("Healthy"))
	require.Equal(t, "![leaf](/tmp/x.jpg)", Process("![leaf](%preview%)", vars))
}
