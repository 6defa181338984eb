package user

import (
	"testing"

	"github.com/evergreen-ci/utility"
	"github.com/scrapedash/scrapedash"
	. "github.com/smartystreets/goconvey/convey"
)

func TestUserUpdate(t *testing.T) {
	Convey("With a user", t, func() {
		u := &User{Id: "u1", Email: "a@example.com", Name: "A", Roles: []scrapedash.UserRole{scrapedash.UserRoleMember}}

		Convey("an empty update changes nothing", func() {
			update := Update{}
			So(update.IsEmpty(), ShouldBeTrue)
			update.Apply(u)
			So(u.Email, ShouldEqual, "a@example.com")
			So(u.Name, ShouldEqual, "A")
		})

		Convey("set fields are copied", func() {
			update := Update{Name: utility.ToStringPtr("B"), Picture: utility.ToStringPtr("https://img")}
			So(update.IsEmpty(), ShouldBeFalse)
			update.Apply(u)
			So(u.Name, ShouldEqual, "B")
			So(u.Picture, ShouldEqual, "https://img")
			So(u.Email, ShouldEqual, "a@example.com")
		})

		Convey("role membership and display name", func() {
			So(u.HasRole(scrapedash.UserRoleMember), ShouldBeTrue)
			So(u.HasRole(scrapedash.UserRoleAdmin), ShouldBeFalse)
			So(u.DisplayName(), ShouldEqual, "A")
			u.Name = ""
			So(u.DisplayName(), ShouldEqual, "u1")
		})
	})
}
