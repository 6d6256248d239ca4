// Package authz is the single place where role and ownership decisions are
// made. Every predicate is pure: it inspects an already-authenticated caller
// and already-fetched resource state, performs no I/O, and returns only a
// boolean. Callers translate a false into a 403 (or a 404, when hiding the
// resource's existence is preferable).
package authz

import (
	"quill/internal/domain/posts"
	"quill/internal/domain/users"
)

// CanView decides whether caller may read the post. A nil caller is an
// anonymous request. Rules apply in order; the first match decides:
//
//  1. private posts are visible to owner and admin only
//  2. anything non-public requires an authenticated caller
//  3. unpublished posts are visible to owner and admin only
//  4. otherwise allow
func CanView(caller *users.User, post *posts.Post) bool {
	privileged := caller != nil && (caller.IsAdmin() || caller.ID == post.AuthorID)

	if post.Visibility == posts.VisibilityPrivate && !privileged {
		return false
	}
	if post.Visibility != posts.VisibilityPublic && caller == nil {
		return false
	}
	if post.Status != posts.StatusPublished && !privileged {
		return false
	}
	return true
}

// CanMutate decides whether caller may update or delete a resource owned by
// ownerID. Admins may mutate anything; everyone else only their own.
func CanMutate(caller *users.User, ownerID int64) bool {
	if caller == nil {
		return false
	}
	return caller.IsAdmin() || caller.ID == ownerID
}

// CanAdminister gates the administrative surface (user management, taxonomy
// mutation).
func CanAdminister(caller *users.User) bool {
	return caller != nil && caller.IsAdmin()
}
