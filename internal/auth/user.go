package auth

import "context"

// User is the identity resolved from a bearer credential. The token
// verification itself happens outside of this service, the resolver only
// maps registered tokens to these claims.
type User struct {
	UID        string `json:"uid"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

type contextKey struct{}

func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(*User)
	return user, ok
}
