package auth

// Allowlist authorizes admin actions against a fixed set of admin ids,
// sourced from configuration. It satisfies the workflow's Authorizer
// capability without tying the workflow to where the list comes from.
type Allowlist struct {
	ids map[int64]struct{}
}

func NewAllowlist(ids []int64) *Allowlist {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &Allowlist{ids: set}
}

func (a *Allowlist) IsAdmin(id int64) bool {
	_, ok := a.ids[id]
	return ok
}
