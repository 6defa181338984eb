package model

import (
	"testing"

	"github.com/scrapedash/scrapedash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIPreviewRequestTrimsSourceURL(t *testing.T) {
	in := APIPreviewRequest{
		TaskName:     "jobs",
		SourceURL:    "  https://example.com/jobs\n",
		Keywords:     []string{"title"},
		OutputFormat: scrapedash.OutputFormatCSV,
	}

	req := in.ToService()
	assert.Equal(t, "https://example.com/jobs", req.SourceURL)
	assert.Equal(t, []string{"title"}, req.Keywords)
	require.NoError(t, req.Validate())
}
