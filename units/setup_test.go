package units

import "github.com/scrapedash/scrapedash/testutil"

func init() {
	testutil.Setup()
}
