package server

// AuthPolicy decides which nicknames may fire privileged commands. The
// router consults it and silently ignores denied commands, so probing for
// admin names yields no observable difference.
type AuthPolicy interface {
	// AllowDaniel gates the danielCommand celebration event.
	AllowDaniel(nickname string) bool
	// AllowAdmin gates adminExplode and adminFly.
	AllowAdmin(nickname string) bool
}

// NicknameAuth authorizes by exact nickname match against two configured
// names. Minimal trust model for a small hobby deployment; swap the policy
// to change the mechanism without touching the router.
type NicknameAuth struct {
	DanielName string
	AdminName  string
}

func (a NicknameAuth) AllowDaniel(nickname string) bool {
	return a.DanielName != "" && nickname == a.DanielName
}

func (a NicknameAuth) AllowAdmin(nickname string) bool {
	return a.AdminName != "" && nickname == a.AdminName
}
