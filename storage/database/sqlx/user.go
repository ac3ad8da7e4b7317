package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/user"
)

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

const getUserQuery = `
SELECT u.id, u.name, u.username, u.email, u.is_active, u.must_change_password,
       u.password_hash, u.created_at, u.updated_at, u.last_login,
       COALESCE(ARRAY_AGG(r.role) FILTER (WHERE r.role IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_role r ON r.user_id = u.id
%s
GROUP BY u.id`

func (repo userRepository) scanUser(row rowScanner) (user.User, error) {
	var (
		usr       user.User
		isActive  null.Bool
		lastLogin null.Time
		roles     pq.StringArray
	)
	err := row.Scan(
		&usr.ID, &usr.Name, &usr.Username, &usr.Email, &isActive, &usr.MustChangePassword,
		&usr.PasswordHash, &usr.CreatedAt, &usr.UpdatedAt, &lastLogin, &roles,
	)
	if err != nil {
		return user.User{}, err
	}
	usr.IsActive = isActive.Ptr()
	usr.LastLogin = lastLogin.Time
	usr.Roles = roles
	return usr, nil
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE (username = ? OR email = ?))`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = `SELECT EXISTS (SELECT 1 FROM users WHERE (username = ? OR email = ?) AND id NOT IN (?))`
		args = append(args, ids)
	}
	q, args, err := expandIn(q, args...)
	if err != nil {
		return err
	}

	var exists bool
	if err = getExec(repo.exec, exec).QueryRowContext(ctx, q, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) saveRoles(ctx context.Context, exe core.DBExecutor, userID string, roles []string) error {
	if _, err := exe.ExecContext(ctx, `DELETE FROM user_role WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "clearing user roles")
	}
	if len(roles) == 0 {
		return nil
	}
	q := `INSERT INTO user_role (user_id, role) SELECT $1, UNNEST($2::TEXT[])`
	if _, err := exe.ExecContext(ctx, q, userID, pq.Array(roles)); err != nil {
		return errors.Wrap(err, "inserting user roles")
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	exe := getExec(repo.exec, exec)

	q := `
INSERT INTO users (id, name, username, email, is_active, must_change_password, password_hash, created_at, updated_at, last_login)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := exe.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, null.BoolFromPtr(usr.IsActive), usr.MustChangePassword,
		usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	if err = repo.saveRoles(ctx, exe, usr.ID, usr.Roles); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		where string
		args  []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		where, args = "WHERE u.id = $1", []interface{}{filter.ID}
	case filter.Username != "":
		where, args = "WHERE u.username = $1", []interface{}{filter.Username}
	case filter.Email != "":
		where, args = "WHERE u.email = $1", []interface{}{filter.Email}
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		where, args = "WHERE u.username = $1 OR u.email = $2", []interface{}{uname, email}
	default:
		return user.User{}, user.ErrNotFound
	}

	row := getExec(repo.exec, exec).QueryRowContext(ctx, withClause(getUserQuery, where), args...)
	usr, err := repo.scanUser(row)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, exec ...core.DBExecutor) ([]user.User, error) {
	q := withClause(getUserQuery, "") + "\nORDER BY u.created_at"
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	var users []user.User
	for rows.Next() {
		usr, err := repo.scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning user")
		}
		users = append(users, usr)
	}
	return users, errors.Wrap(rows.Err(), "querying users")
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := getExec(repo.exec, exec)

	// only save set fields
	orig, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
	if err != nil {
		return user.User{}, err
	}
	if usr.Name != "" {
		orig.Name = usr.Name
	}
	if usr.Username != "" {
		orig.Username = usr.Username
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if usr.IsActive != nil {
		orig.IsActive = usr.IsActive
	}
	if usr.Roles != nil {
		orig.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		// a password write owns the must-change flag
		orig.PasswordHash = usr.PasswordHash
		orig.MustChangePassword = usr.MustChangePassword
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	if !usr.UpdatedAt.IsZero() {
		orig.UpdatedAt = usr.UpdatedAt
	}

	q := `
UPDATE users
SET name = $2, username = $3, email = $4, is_active = $5, must_change_password = $6,
    password_hash = $7, updated_at = $8, last_login = $9
WHERE id = $1`
	_, err = exe.ExecContext(ctx, q,
		orig.ID, orig.Name, orig.Username, orig.Email, null.BoolFromPtr(orig.IsActive), orig.MustChangePassword,
		orig.PasswordHash, orig.UpdatedAt.UTC(), null.NewTime(orig.LastLogin.UTC(), !orig.LastLogin.IsZero()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if usr.Roles != nil {
		if err = repo.saveRoles(ctx, exe, orig.ID, orig.Roles); err != nil {
			return user.User{}, err
		}
	}
	return orig, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}
