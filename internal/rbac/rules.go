package rbac

// Default policy. Students operate on their own attempts only; the service
// layer enforces ownership, this table gates the operation class.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:create",
		"attempt:view-own",
		"attempt:answer",
		"attempt:control", // start/pause/resume/complete
		"practice:*",
		"profile:view-own",
	},
	"admin": {
		"*", // everything, including item:create and config:view
	},
}
