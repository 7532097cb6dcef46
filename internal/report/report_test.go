package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

func TestDefaultFailedListPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", FailedListName), DefaultFailedListPath("/data/pdfs"))
	assert.Equal(t, filepath.Join("/data", FailedListName), DefaultFailedListPath("/data/pdfs/"))
	assert.Equal(t, FailedListName, DefaultFailedListPath("pdfs"))
}

func TestWriteFailedList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", FailedListName)

	require.NoError(t, WriteFailedList(path, []string{"2", "31452104"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pmid\n2\n31452104\n", string(data))
}

func TestWriteFailedList_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FailedListName)

	require.NoError(t, WriteFailedList(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pmid\n", string(data))
}

func TestWriteFailedList_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), FailedListName)
	require.NoError(t, os.WriteFile(path, []byte("pmid\n1\n2\n3\n"), 0o644))

	require.NoError(t, WriteFailedList(path, []string{"9"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pmid\n9\n", string(data))
}

func TestSummary(t *testing.T) {
	r := domain.BatchResult{Outcomes: []domain.RetrievalOutcome{
		{PMID: "1", State: domain.StateSucceeded, Succeeded: true},
		{PMID: "2", State: domain.StateExistsLocally, Succeeded: true},
		{PMID: "3", State: domain.StateFailed},
		{PMID: "4", State: domain.StateMapFailed},
	}}

	assert.Equal(t, "done: 2/4", Summary(r))
	assert.Equal(t, "done: 0/0", Summary(domain.BatchResult{}))
}
