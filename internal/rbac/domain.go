package rbac

// Role groups permissions. Slug is the stable key.
type Role struct {
	ID          int64    `json:"id"`
	ULID        string   `json:"ulid"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Permission is an atomic capability checked by the gate.
type Permission struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// RoleInput is the body accepted when creating or updating a role.
// Permissions lists permission slugs and replaces the role's current set.
type RoleInput struct {
	Slug        string   `json:"slug" validate:"required,min=2,max=50"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required"`
}

// PermissionInput is the body accepted when creating or updating a permission.
type PermissionInput struct {
	Slug        string `json:"slug" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=255"`
}
