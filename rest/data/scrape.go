package data

import (
	"context"

	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/scrape"
	"github.com/scrapedash/scrapedash/units"
)

// Preview runs the scrape pipeline for a request that isn't saved as a task.
func (dc *DBConnector) Preview(ctx context.Context, req scrape.Request) (*scrape.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, badRequest(err)
	}
	res, err := dc.Scraper.Preview(ctx, req)
	return res, errors.Wrap(err, "previewing task")
}

func (dc *DBConnector) SummarizeTask(ctx context.Context, t *task.Task) error {
	if err := validateSummaryInput(t); err != nil {
		return err
	}
	defer dc.Caches.InvalidateTask(t.Id)

	_, err := units.SummarizeTask(ctx, dc.Scraper, t)
	return err
}

// validateSummaryInput rejects definitions that task creation would reject
// and definitions without a result to summarize.
func validateSummaryInput(t *task.Task) error {
	if err := validateDefinition(t); err != nil {
		return err
	}
	def, err := t.Definition()
	if err != nil {
		return badRequest(err)
	}
	text, err := def.ResultText()
	if err != nil || text == "" {
		return badRequest(errors.New("Full response not found"))
	}
	return nil
}
