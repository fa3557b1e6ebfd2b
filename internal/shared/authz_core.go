package shared

// Builtin permission slugs.
const (
	PermManageUsers       = "manage_users"
	PermManageRoles       = "manage_roles"
	PermManagePermissions = "manage_permissions"
	PermManagePages       = "manage_pages"
	PermManagePosts       = "manage_posts"
	PermPublishContent    = "publish_content"
	PermDeleteContent     = "delete_content"
	PermEditContent       = "edit_content"
	PermViewDashboard     = "view_dashboard"
)

// Builtin role slugs.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
)

// PermissionDef describes a catalog entry.
type PermissionDef struct {
	Slug        string
	Description string
}

// CoreScopes lists the builtin permission catalog in installation order.
func CoreScopes() []PermissionDef {
	return []PermissionDef{
		{PermManageUsers, "Create, edit, delete users"},
		{PermManageRoles, "Create, edit, delete roles"},
		{PermManagePermissions, "Create, edit, delete permissions"},
		{PermManagePages, "Create, edit, delete pages"},
		{PermManagePosts, "Create, edit, delete posts"},
		{PermPublishContent, "Publish pages and posts"},
		{PermDeleteContent, "Delete pages and posts"},
		{PermEditContent, "Edit pages and posts"},
		{PermViewDashboard, "Access admin dashboard"},
	}
}

// EditorScopes lists the permissions granted to the editor role.
func EditorScopes() []string {
	return []string{PermManagePages, PermEditContent, PermPublishContent, PermViewDashboard}
}
