package auth

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Name returns the display name.
func (u UserIdentity) Name() string {
	if u.user == nil {
		return ""
	}
	return u.user.Name
}

// Role returns the user's role.
func (u UserIdentity) Role() Role {
	if u.user == nil {
		return ""
	}
	return u.user.Role
}

// IdentityClaim is the minimal identity returned after a successful authentication
type IdentityClaim struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// ClaimFromIdentity reduces an Identity to its claim
func ClaimFromIdentity(identity Identity) *IdentityClaim {
	if identity == nil {
		return nil
	}
	return &IdentityClaim{
		ID:    identity.ID(),
		Email: identity.Email(),
		Name:  identity.Name(),
		Role:  identity.Role(),
	}
}
