package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/scrapedash/scrapedash"
	"github.com/stretchr/testify/require"
)

// GetDirectoryOfFile returns the path to of the file that calling
// this function. Use this to ensure that references to testdata and
// other file system locations in tests are not dependent on the working
// directory of the "go test" invocation.
func GetDirectoryOfFile() string {
	_, file, _, _ := runtime.Caller(1)

	return filepath.Dir(file)
}

// TestToken signs an HS256 bearer token for the given subject with the test
// signing secret.
func TestToken(t *testing.T, subject string, roles ...scrapedash.UserRole) string {
	roleValues := make([]int64, 0, len(roles))
	for _, r := range roles {
		roleValues = append(roleValues, int64(r))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"aud":   TestAudience,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"name":  subject,
		"roles": roleValues,
	})
	signed, err := token.SignedString([]byte(TestSigningSecret))
	require.NoError(t, err)

	return signed
}
