// Package repository provides typed repositories over mapped statements.
//
// # Overview
//
// A Repository[T] binds a set of statement ids in one namespace to a record
// type. Reads go through a session, so they are served from the namespace
// cache when the statements reference one; writes flush that cache the same
// way any other write in the namespace does.
//
// # Statement naming
//
// Unless overridden, statement ids are derived from the snake_case name of
// T. For a type UserAccount the namespace is "user_account" and the
// repository expects:
//
//   - user_account.get_by_id
//   - user_account.list
//   - user_account.count
//   - user_account.create
//   - user_account.update
//   - user_account.delete
//
// Only the statements a caller actually uses need to be registered.
//
// # Sessions
//
// Each call opens its own session and commits it before returning. Use
// Repository.With to run calls on a session the caller owns; those calls
// neither commit nor close it.
//
//	users := repository.New[*User](factory, repository.WithDecoder(decodeUser))
//	u, err := users.GetByID(ctx, map[string]any{"id": 1})
//
//	s, err := factory.OpenSession()
//	defer s.Close(ctx)
//	_, err = users.With(s).Create(ctx, &User{Name: "grace"})
//	err = s.Commit(ctx, false)
package repository
