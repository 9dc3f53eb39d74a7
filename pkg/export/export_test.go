package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Title", "Course", "Downloads"},
		Rows: []map[string]string{
			{"Title": "Algo Notes", "Course": "CS201", "Downloads": "12"},
			{"Title": "Calculus Summary", "Course": "MA101", "Downloads": "3"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Title,Course,Downloads")
	assert.Contains(t, string(out), "Algo Notes,CS201,12")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	data := Dataset{
		Headers: []string{"User", "Karma"},
		Rows: []map[string]string{
			{"User": "alice", "Karma": "42"},
		},
	}

	out, err := exporter.Render(data, "Karma Standings")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
