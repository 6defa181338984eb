package identity

import (
	"fmt"

	"github.com/scrapedash/scrapedash"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", scrapedash.PackageName, "/thirdparty/identity")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	operationAttribute = "scrapedash.identity.operation"
	statusAttribute    = "scrapedash.identity.status"
)
