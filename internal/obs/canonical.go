package obs

import "strings"

// CanonicalPath collapses resource identifiers in marketplace API paths so
// metric labels stay low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch parts[0] {
	case "brands":
		switch len(parts) {
		case 2:
			if parts[1] == "top" {
				return "/brands/top"
			}
			return "/brands/:id"
		case 3:
			return "/brands/:id/" + parts[2]
		case 4:
			return "/brands/:id/" + parts[2] + "/" + parts[3]
		}
	case "offers":
		if len(parts) == 2 && parts[1] != "my-offers" && parts[1] != "best" {
			return "/offers/:id"
		}
	case "b":
		switch len(parts) {
		case 2:
			return "/b/:slug"
		case 3:
			return "/b/:slug/" + parts[2]
		}
	case "auth":
		if len(parts) == 4 && parts[1] == "password" && parts[2] == "reset" {
			return "/auth/password/reset/:token"
		}
	}
	return "/" + strings.Join(parts, "/")
}
