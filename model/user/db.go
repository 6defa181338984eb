package user

import (
	"context"
	"time"

	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "users"

var (
	IdKey         = bsonutil.MustHaveTag(User{}, "Id")
	ConnectionKey = bsonutil.MustHaveTag(User{}, "Connection")
	EmailKey      = bsonutil.MustHaveTag(User{}, "Email")
	NameKey       = bsonutil.MustHaveTag(User{}, "Name")
	GivenNameKey  = bsonutil.MustHaveTag(User{}, "GivenName")
	FamilyNameKey = bsonutil.MustHaveTag(User{}, "FamilyName")
	UsernameKey   = bsonutil.MustHaveTag(User{}, "Username")
	NicknameKey   = bsonutil.MustHaveTag(User{}, "Nickname")
	ScreenNameKey = bsonutil.MustHaveTag(User{}, "ScreenName")
	LocationKey   = bsonutil.MustHaveTag(User{}, "Location")
	LastLoginKey  = bsonutil.MustHaveTag(User{}, "LastLogin")
	PictureKey    = bsonutil.MustHaveTag(User{}, "Picture")
	RolesKey      = bsonutil.MustHaveTag(User{}, "Roles")
	CreatedAtKey  = bsonutil.MustHaveTag(User{}, "CreatedAt")
)

// EnsureIndexes creates the indexes used by user queries.
func EnsureIndexes(ctx context.Context) error {
	return errors.Wrap(db.EnsureIndex(ctx, Collection, mongo.IndexModel{
		Keys:    bson.D{{Key: EmailKey, Value: 1}},
		Options: options.Index().SetSparse(true),
	}), "creating email index")
}

// FindOneById returns the user with the given id, or nil if there is none.
func FindOneById(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := db.FindOneQContext(ctx, Collection, db.Query(bson.M{IdKey: id}), u)
	if db.ResultsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding user '%s'", id)
	}
	return u, nil
}

// Find returns one page of users ordered by id, along with the total number
// of users. Pages are 0-indexed.
func Find(ctx context.Context, page, pageSize int) ([]User, int, error) {
	if page < 0 || pageSize < 1 {
		return nil, 0, errors.Errorf("invalid page %d with size %d", page, pageSize)
	}

	total, err := db.Count(ctx, Collection, bson.M{})
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	users := []User{}
	q := db.Query(bson.M{}).Sort([]string{IdKey}).Skip(page * pageSize).Limit(pageSize)
	if err = db.FindAllQ(ctx, Collection, q, &users); err != nil {
		return nil, 0, errors.Wrap(err, "finding users")
	}

	return users, total, nil
}

// FindAll returns every user.
func FindAll(ctx context.Context) ([]User, error) {
	users := []User{}
	err := db.FindAllQ(ctx, Collection, db.Query(bson.M{}).Sort([]string{IdKey}), &users)
	return users, errors.Wrap(err, "finding users")
}

// Upsert inserts the user, or replaces the profile fields of an existing
// user with the same id. Roles are only written on insert.
func (u *User) Upsert(ctx context.Context) error {
	if u.Id == "" {
		return errors.New("user must have an id")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	roles := u.Roles
	if roles == nil {
		roles = []scrapedash.UserRole{}
	}

	_, err := db.Upsert(ctx, Collection,
		bson.M{IdKey: u.Id},
		bson.M{
			"$set": bson.M{
				ConnectionKey: u.Connection,
				EmailKey:      u.Email,
				NameKey:       u.Name,
				GivenNameKey:  u.GivenName,
				FamilyNameKey: u.FamilyName,
				UsernameKey:   u.Username,
				NicknameKey:   u.Nickname,
				ScreenNameKey: u.ScreenName,
				LocationKey:   u.Location,
				LastLoginKey:  u.LastLogin,
				PictureKey:    u.Picture,
			},
			"$setOnInsert": bson.M{
				RolesKey:     roles,
				CreatedAtKey: u.CreatedAt,
			},
		})
	return errors.Wrapf(err, "upserting user '%s'", u.Id)
}

// UpdateOne applies the partial update to the user with the given id.
func UpdateOne(ctx context.Context, id string, update Update) error {
	set := bson.M{}
	add := func(key string, val *string) {
		if val != nil {
			set[key] = *val
		}
	}
	add(EmailKey, update.Email)
	add(NameKey, update.Name)
	add(GivenNameKey, update.GivenName)
	add(FamilyNameKey, update.FamilyName)
	add(UsernameKey, update.Username)
	add(NicknameKey, update.Nickname)
	add(ScreenNameKey, update.ScreenName)
	add(LocationKey, update.Location)
	add(PictureKey, update.Picture)

	if len(set) == 0 {
		n, err := db.Count(ctx, Collection, bson.M{IdKey: id})
		if err != nil {
			return errors.Wrapf(err, "finding user '%s'", id)
		}
		if n == 0 {
			return errors.Wrapf(db.ErrNotFound, "user '%s'", id)
		}
		return nil
	}

	return errors.Wrapf(db.UpdateIdContext(ctx, Collection, id, bson.M{"$set": set}), "updating user '%s'", id)
}

// SetLastLogin records a login for the user.
func SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return errors.Wrapf(db.UpdateIdContext(ctx, Collection, id, bson.M{
		"$set": bson.M{LastLoginKey: at},
	}), "setting last login for user '%s'", id)
}

// RemoveOne deletes the user with the given id.
func RemoveOne(ctx context.Context, id string) error {
	n, err := db.Count(ctx, Collection, bson.M{IdKey: id})
	if err != nil {
		return errors.Wrapf(err, "finding user '%s'", id)
	}
	if n == 0 {
		return errors.Wrapf(db.ErrNotFound, "user '%s'", id)
	}
	return errors.Wrapf(db.Remove(ctx, Collection, bson.M{IdKey: id}), "removing user '%s'", id)
}

// AddRole gives the user a role. Adding a role the user already holds is a
// no-op.
func AddRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	if err := role.Validate(); err != nil {
		return err
	}
	return errors.Wrapf(db.UpdateIdContext(ctx, Collection, id, bson.M{
		"$addToSet": bson.M{RolesKey: role},
	}), "adding role %d to user '%s'", role, id)
}

// RemoveRole takes a role from the user.
func RemoveRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	if err := role.Validate(); err != nil {
		return err
	}
	return errors.Wrapf(db.UpdateIdContext(ctx, Collection, id, bson.M{
		"$pull": bson.M{RolesKey: role},
	}), "removing role %d from user '%s'", role, id)
}

// Roles returns the roles held by the user.
func Roles(ctx context.Context, id string) ([]scrapedash.UserRole, error) {
	u := &User{}
	err := db.FindOneQContext(ctx, Collection, db.Query(bson.M{IdKey: id}).WithFields(RolesKey), u)
	if err != nil {
		return nil, errors.Wrapf(err, "finding roles for user '%s'", id)
	}
	if u.Roles == nil {
		return []scrapedash.UserRole{}, nil
	}
	return u.Roles, nil
}
