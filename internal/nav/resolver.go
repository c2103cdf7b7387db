package nav

import "strings"

const adminPrefix = "/admin"

// keyword -> canonical site path. Kept in sync with the public site map.
var targets = map[string]string{
	"home":      "/",
	"landing":   "/",
	"about":     "/about",
	"impact":    "/impact",
	"events":    "/events",
	"meetups":   "/events",
	"chapters":  "/chapters",
	"volunteer": "/volunteer",
	"partners":  "/partners",
	"blog":      "/blog",
	"resources": "/resources",
	"contact":   "/contact",
	"submit":    "/submit",
	"faq":       "/faq",
	"donate":    "/donate",
}

// Resolve maps a free-text target (keyword or path) to a canonical safe
// site path. ok is false when the target is unknown or administrative;
// callers must not navigate in that case.
func Resolve(target string) (path string, ok bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return "", false
	}
	if p, found := targets[target]; found {
		return p, true
	}
	if strings.HasPrefix(target, "/") {
		if isAdminPath(target) {
			return "", false
		}
		return target, true
	}
	if trimmed, found := strings.CutSuffix(target, " page"); found {
		if p, found := targets[strings.TrimSpace(trimmed)]; found {
			return p, true
		}
	}
	return "", false
}

func isAdminPath(p string) bool {
	if p == adminPrefix {
		return true
	}
	return strings.HasPrefix(p, adminPrefix+"/")
}
