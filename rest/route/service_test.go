package route

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/auth"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/testutil"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, sc data.Connector) *httptest.Server {
	validator := auth.NewValidator(scrapedash.AuthConfig{
		SigningSecret: testutil.TestSigningSecret,
		Audience:      testutil.TestAudience,
	}, nil)
	h, err := NewHandler(scrapedash.APIConfig{CORSOrigins: []string{"https://dash.example.com"}}, sc, validator)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token, body string) (int, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func TestAPIAccessControl(t *testing.T) {
	Convey("With the API served over the mock connector", t, func() {
		sc := data.NewMockConnector()
		sc.Users["admin"] = user.User{Id: "admin", Email: "admin@example.com", Roles: []scrapedash.UserRole{scrapedash.UserRoleAdmin}}
		sc.Users["u1"] = user.User{Id: "u1", Email: "one@example.com", Roles: []scrapedash.UserRole{scrapedash.UserRoleUser}}
		sc.Users["u2"] = user.User{Id: "u2", Email: "two@example.com", Roles: []scrapedash.UserRole{scrapedash.UserRoleUser}}
		srv := newTestServer(t, sc)

		adminToken := testutil.TestToken(t, "admin", scrapedash.UserRoleAdmin)
		userToken := testutil.TestToken(t, "u1", scrapedash.UserRoleUser)

		Convey("the health check needs no token", func() {
			status, body := call(t, srv, http.MethodGet, "/api/healthz", "", "")
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("requests without a valid token are rejected", func() {
			status, body := call(t, srv, http.MethodGet, "/api/user/u1", "", "")
			So(status, ShouldEqual, http.StatusUnauthorized)
			So(body, ShouldContainSubstring, "JWT is invalid.")

			status, _ = call(t, srv, http.MethodGet, "/api/user/u1", "not-a-token", "")
			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("users can read themselves but not others", func() {
			status, body := call(t, srv, http.MethodGet, "/api/user/u1", userToken, "")
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, "one@example.com")

			status, _ = call(t, srv, http.MethodGet, "/api/user/u2", userToken, "")
			So(status, ShouldEqual, http.StatusForbidden)
		})

		Convey("admin routes require the admin role", func() {
			status, _ := call(t, srv, http.MethodGet, "/api/user", userToken, "")
			So(status, ShouldEqual, http.StatusForbidden)

			status, body := call(t, srv, http.MethodGet, "/api/user?page=1&pageSize=2", adminToken, "")
			So(status, ShouldEqual, http.StatusOK)
			page := struct {
				Total int               `json:"total"`
				Data  []json.RawMessage `json:"data"`
			}{}
			So(json.Unmarshal([]byte(body), &page), ShouldBeNil)
			So(page.Total, ShouldEqual, 3)
			So(len(page.Data), ShouldEqual, 2)

			status, _ = call(t, srv, http.MethodPut, "/api/user/u1", userToken, `{"name": "Someone Else"}`)
			So(status, ShouldEqual, http.StatusForbidden)
		})

		Convey("roles come from the directory rather than the token", func() {
			promoted := testutil.TestToken(t, "u1", scrapedash.UserRoleAdmin)
			status, _ := call(t, srv, http.MethodGet, "/api/task", promoted, "")
			So(status, ShouldEqual, http.StatusForbidden)
		})

		Convey("admins can manage roles", func() {
			status, body := call(t, srv, http.MethodPost, "/api/v1/user/u2/roles", adminToken, fmt.Sprintf(`{"role": %d}`, scrapedash.UserRoleMember))
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"roles":[1,2]`)

			status, _ = call(t, srv, http.MethodPost, "/api/v1/user/u2/roles", adminToken, `{"role": 12}`)
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("tasks are reachable under both prefixes", func() {
			status, _ := call(t, srv, http.MethodPost, "/api/user/u1/task", userToken, `{"task_name": "jobs", "task_definition": `+testDefinition+`}`)
			So(status, ShouldEqual, http.StatusCreated)

			status, body := call(t, srv, http.MethodGet, "/api/v1/user/u1/task", userToken, "")
			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"task_name":"jobs"`)

			status, _ = call(t, srv, http.MethodGet, "/api/user/u2/task", userToken, "")
			So(status, ShouldEqual, http.StatusForbidden)

			status, _ = call(t, srv, http.MethodGet, "/api/user/u2/task", adminToken, "")
			So(status, ShouldEqual, http.StatusOK)
		})

		Convey("browsers from allowed origins get CORS headers", func() {
			req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/user/u1", nil)
			So(err, ShouldBeNil)
			req.Header.Set("Origin", "https://dash.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			req.Header.Set("Access-Control-Request-Headers", "Authorization")
			resp, err := srv.Client().Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "https://dash.example.com")
		})
	})
}
