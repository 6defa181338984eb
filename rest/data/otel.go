package data

import (
	"fmt"

	"github.com/scrapedash/scrapedash"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", scrapedash.PackageName, "/rest/data")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	userIDAttribute   = "scrapedash.rest.user_id"
	taskIDAttribute   = "scrapedash.rest.task_id"
	usersAttribute    = "scrapedash.rest.users"
	pageAttribute     = "scrapedash.rest.page"
	pageSizeAttribute = "scrapedash.rest.page_size"
)
