package scrape

import (
	"fmt"

	"github.com/scrapedash/scrapedash"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", scrapedash.PackageName, "/scrape")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	sourceURLAttribute    = "scrapedash.scrape.source_url"
	statusCodeAttribute   = "scrapedash.scrape.status_code"
	attemptsAttribute     = "scrapedash.scrape.attempts"
	fromCacheAttribute    = "scrapedash.scrape.from_cache"
	modelAttribute        = "scrapedash.scrape.model"
	outputFormatAttribute = "scrapedash.scrape.output_format"
)
