package ledger

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/user"
)

// Actor identifies the authenticated user an append is attributed to.
// The zero Actor means the write happened outside an authenticated
// session (background jobs, public verification).
type Actor struct {
	UserID int
}

func (a Actor) IsZero() bool { return a.UserID == 0 }

// initiatorResolver picks the user a transaction is attributed to, in
// strict order: the acting user, then the linked user of the record's
// teacher, then the oldest admin. Each step that yields nothing falls
// through to the next; when all three fail the resolution errors with
// ErrNoInitiator and no transaction must be created.
type initiatorResolver struct {
	users *user.Service
}

// TeacherUserFunc lazily resolves the user linked to the record's
// teacher. A nil func means the record has no teacher dimension. It
// returns user.ErrNotFound (or 0) when the teacher has no linked user.
type TeacherUserFunc func(ctx context.Context) (int, error)

func (r initiatorResolver) resolve(ctx context.Context, actor Actor, teacherUser TeacherUserFunc) (int, error) {
	if !actor.IsZero() {
		return actor.UserID, nil
	}

	if teacherUser != nil {
		id, err := teacherUser(ctx)
		switch errors.Cause(err) {
		case nil:
			if id > 0 {
				return id, nil
			}
		case user.ErrNotFound: // fall through to the admin
		default:
			return 0, errors.Wrap(err, "resolving teacher user")
		}
	}

	admin, err := r.users.FirstAdmin(ctx)
	switch errors.Cause(err) {
	case nil:
		return admin.ID, nil
	case user.ErrNotFound:
		return 0, ErrNoInitiator
	default:
		return 0, errors.Wrap(err, "resolving first admin")
	}
}
