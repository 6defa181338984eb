package units

import (
	"fmt"

	"github.com/scrapedash/scrapedash"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", scrapedash.PackageName, "/units")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	taskIDAttribute      = "scrapedash.task.id"
	runIDAttribute       = "scrapedash.run.id"
	runStatusAttribute   = "scrapedash.run.status"
	staleRunsAttribute   = "scrapedash.runs.stale"
	dueTasksAttribute    = "scrapedash.tasks.due"
	outputBytesAttribute = "scrapedash.run.output_bytes"
)
