package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bistream/bistream-go/pkg/log"
)

func TestExportToJSONL(t *testing.T) {
	path := writeCapture(t, sampleSession())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, FormatJSONL, log.Filter{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var event log.Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &event))
	assert.Equal(t, uint64(4), event.StreamID)
	assert.Equal(t, log.RoleFirst, event.Role)
	require.NotNil(t, event.Frame)
	assert.Equal(t, []byte("hello"), event.Frame.Data)
}

func TestExportToCSV(t *testing.T) {
	path := writeCapture(t, sampleSession())
	stream := uint64(8)

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, FormatCSV, log.Filter{StreamID: &stream}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, csvHeader, records[0])
	row := records[1]
	assert.Equal(t, "8", row[2])
	assert.Equal(t, "IN", row[3])
	assert.Equal(t, "SECOND", row[6])
	assert.Equal(t, "error", row[7])
	assert.Equal(t, "stream reset by peer", row[9])
}

func TestExportFrameSize(t *testing.T) {
	row := csvRow(sampleSession()[2])
	assert.Equal(t, "frame", row[7])
	assert.Equal(t, "19", row[8])
}

func TestExportUnknownFormat(t *testing.T) {
	path := writeCapture(t, sampleSession())
	err := RunExport(path, "xml", log.Filter{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}
