package testutil

import (
	"net/http/httptest"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/auth"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/route"
	"github.com/scrapedash/scrapedash/testutil"
)

// NewTestServerFromConnector starts the REST API on a local port, backed by
// an already constructed Connector. Bearer tokens are checked against the
// test signing secret, so tokens from testutil.TestToken are accepted. This
// is useful when mocking out sections of the Connector to make sure requests
// occur as expected.
func NewTestServerFromConnector(sc data.Connector) (*httptest.Server, error) {
	validator := auth.NewValidator(scrapedash.AuthConfig{
		SigningSecret: testutil.TestSigningSecret,
		Audience:      testutil.TestAudience,
	}, nil)
	h, err := route.NewHandler(scrapedash.APIConfig{}, sc, validator)
	if err != nil {
		return nil, err
	}

	server := httptest.NewServer(h)
	grip.Info(message.Fields{
		"message": "started test server",
		"url":     server.URL,
	})
	return server, nil
}
