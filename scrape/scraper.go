package scrape

import (
	"context"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/util"
)

// PreviewMessage is returned with every successful preview.
const PreviewMessage = "Task received successfully"

// Request describes one extraction.
type Request struct {
	TaskName     string
	SourceURL    string
	Keywords     []string
	DataTypes    []string
	OutputFormat string
}

func (r *Request) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.Wrap(util.ValidateHTTPURL(r.SourceURL), "invalid source URL")
	catcher.NewWhen(len(r.Keywords) == 0, "at least one keyword is required")
	catcher.ErrorfWhen(scrapedash.OutputTypeFromFormat(r.OutputFormat) == scrapedash.OutputTypeUnknown,
		"unsupported output format '%s'", r.OutputFormat)
	return catcher.Resolve()
}

// Result is a completed extraction together with the inputs that produced it.
type Result struct {
	Message      string
	CleanedText  string
	Images       []string
	Keywords     []string
	DataTypes    []string
	Preview      string
	FullResponse string
	OutputFormat string
}

// Scraper runs the fetch, clean and extract pipeline.
type Scraper struct {
	fetcher   *Fetcher
	extractor *Extractor
}

// New builds a scraper from the service settings.
func New(settings *scrapedash.Settings) *Scraper {
	return &Scraper{
		fetcher:   NewFetcher(settings.Scraper),
		extractor: NewExtractor(settings.LLM, util.NewInstrumentedHTTPClient(settings.LLM.Timeout())),
	}
}

// NewWithComponents assembles a scraper from already configured parts.
func NewWithComponents(fetcher *Fetcher, extractor *Extractor) *Scraper {
	return &Scraper{fetcher: fetcher, extractor: extractor}
}

// Preview fetches the source page and extracts the requested matches.
func (s *Scraper) Preview(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scrape request")
	}
	startAt := time.Now()

	body, err := s.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		return nil, err
	}

	page, err := Clean(body)
	if err != nil {
		return nil, errors.Wrapf(err, "cleaning '%s'", req.SourceURL)
	}

	extraction, err := s.extractor.Extract(ctx, req, page)
	if err != nil {
		return nil, err
	}

	grip.Info(message.Fields{
		"message":       "extracted matches from page",
		"task_name":     req.TaskName,
		"url":           req.SourceURL,
		"output_format": req.OutputFormat,
		"text_bytes":    len(page.Text),
		"images":        len(page.Images),
		"result_bytes":  len(extraction.Full),
		"duration_secs": time.Since(startAt).Seconds(),
	})

	return &Result{
		Message:      PreviewMessage,
		CleanedText:  page.Text,
		Images:       page.Images,
		Keywords:     req.Keywords,
		DataTypes:    req.DataTypes,
		Preview:      extraction.Preview,
		FullResponse: extraction.Full,
		OutputFormat: req.OutputFormat,
	}, nil
}

// Summarize condenses a full extraction result.
func (s *Scraper) Summarize(ctx context.Context, full string) (string, error) {
	return s.extractor.Summarize(ctx, full)
}
