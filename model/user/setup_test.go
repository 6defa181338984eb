package user

import "github.com/scrapedash/scrapedash/testutil"

func init() {
	testutil.Setup()
}
