package service

import "strings"

// RedirectPolicy sends the UI to LandingRoute when an identity is resolved
// while it sits on one of AuthOnlyRoutes.
type RedirectPolicy struct {
	AuthOnlyRoutes []string
	LandingRoute   string
}

func (p RedirectPolicy) target(current string) (string, bool) {
	if p.LandingRoute == "" || current == "" {
		return "", false
	}
	current = strings.TrimSuffix(current, "/")
	for _, r := range p.AuthOnlyRoutes {
		if strings.TrimSuffix(r, "/") == current {
			return p.LandingRoute, true
		}
	}
	return "", false
}
