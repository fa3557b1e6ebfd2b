package users

// Admin is an administrative account as shown by the management API. The
// password hash never leaves the repository.
type Admin struct {
	ID        int64  `json:"id"`
	ULID      string `json:"ulid"`
	LoginName string `json:"login_name"`
	Email     string `json:"email"`
	Status    int    `json:"status"`
	RoleID    int64  `json:"role_id"`
	RoleSlug  string `json:"role"`
}

// NewAdmin carries the input for creating an account.
type NewAdmin struct {
	LoginName string `validate:"required,min=3,max=50"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	RoleID    int64  `validate:"required,gt=0"`
}

// AdminUpdate carries the input for editing an account. An empty Password
// keeps the stored hash.
type AdminUpdate struct {
	LoginName string `validate:"required,min=3,max=50"`
	Email     string `validate:"required,email"`
	Password  string `validate:"omitempty,min=8"`
	RoleID    int64  `validate:"required,gt=0"`
	Status    int    `validate:"oneof=0 1"`
}
