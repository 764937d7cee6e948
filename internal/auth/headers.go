package auth

// Advisory identity headers. They are conveniences for trusted next hops and legacy
// consumers; no component of this module authenticates a request from them.
const (
	HeaderAuthorization = "Authorization"
	HeaderUserID        = "X-User-ID"
	HeaderUsername      = "X-Username"
	HeaderRoles         = "X-Roles"
)

// IdentityHeaderNames lists the advisory headers, which gates strip from inbound requests.
var IdentityHeaderNames = []string{HeaderUserID, HeaderUsername, HeaderRoles}

// IdentityHeaders renders identity as advisory header values.
func IdentityHeaders(identity Identity) map[string]string {
	return map[string]string{
		HeaderUserID:   identity.SubjectID,
		HeaderUsername: identity.Username,
		HeaderRoles:    string(identity.Role),
	}
}
