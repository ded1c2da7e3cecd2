package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// UserPayload holds the user attributes this tool manages.
type UserPayload struct {
	Lang string `json:"lang,omitempty"`

	username string
}

// userKind adjusts an existing user. Users are never created.
type userKind struct{}

func (userKind) Name() string { return "user" }
func (userKind) Key(d UserPayload) string { return d.username }
func (userKind) ID(r Object) string { return r.Str("userid") }

func (userKind) Lookup(ctx context.Context, c rpc.Caller, d UserPayload) (Object, bool, error) {
	return first(ctx, c, "user.get", byName("username", d.username))
}

func (userKind) Create(_ context.Context, _ rpc.Caller, d UserPayload) (string, error) {
	return "", engine.NewPreconditionError(fmt.Sprintf("user %q not found", d.username), nil).
		WithOperation("user.get")
}

func (userKind) Diff(d UserPayload, r Object) []engine.Change {
	return diffPayload(d, r)
}

func (userKind) Update(ctx context.Context, c rpc.Caller, d UserPayload, r Object) error {
	_, err := write(ctx, c, "user.update", "userids", withID("userid", r.Str("userid"), d))
	return err
}

// EnsureUser sets the UI language of an existing user.
func EnsureUser(ctx context.Context, c rpc.Caller, u catalog.UserSettings) (engine.StepResult, error) {
	return Ensure[UserPayload, Object](ctx, c, userKind{}, UserPayload{Lang: u.Lang, username: u.Username})
}

// userRights is the minimum permission wanted per host group id for every
// user group of a user.
type userRights struct {
	username string
	minimum  map[string]int
}

// userGroups are the live user groups of a user with their host group rights.
type userGroups struct {
	userID string
	groups []Object
}

// userRightsKind only raises permissions: a right already at or above the
// wanted level is left alone, and rights on other host groups are kept.
type userRightsKind struct{}

func (userRightsKind) Name() string { return "userrights" }
func (userRightsKind) Key(d userRights) string { return d.username }
func (userRightsKind) ID(r userGroups) string { return r.userID }

func (userRightsKind) Lookup(ctx context.Context, c rpc.Caller, d userRights) (userGroups, bool, error) {
	user, found, err := first(ctx, c, "user.get", Params{
		"output":        "extend",
		"filter":        map[string]interface{}{"username": []string{d.username}},
		"selectUsrgrps": "extend",
	})
	if err != nil {
		return userGroups{}, false, err
	}
	if !found {
		return userGroups{}, false, engine.NewPreconditionError(fmt.Sprintf("user %q not found", d.username), nil).
			WithOperation("user.get")
	}

	ids := user.IDs("usrgrps", "usrgrpid")
	if len(ids) == 0 {
		return userGroups{userID: user.Str("userid")}, true, nil
	}
	groups, err := get(ctx, c, "usergroup.get", Params{
		"output":                "extend",
		"usrgrpids":             ids,
		"selectHostGroupRights": "extend",
	})
	if err != nil {
		return userGroups{}, false, err
	}
	return userGroups{userID: user.Str("userid"), groups: groups}, true, nil
}

func (userRightsKind) Create(_ context.Context, _ rpc.Caller, d userRights) (string, error) {
	return "", engine.NewPreconditionError(fmt.Sprintf("user %q not found", d.username), nil)
}

func (userRightsKind) Diff(d userRights, r userGroups) []engine.Change {
	var changes []engine.Change
	for _, g := range r.groups {
		current := rightsOf(g)
		for _, hg := range sortedKeys(d.minimum) {
			if current[hg] < d.minimum[hg] {
				path := fmt.Sprintf("%s.hostgroup_rights.%s", g.Str("name"), hg)
				changes = append(changes, engine.Change{Path: path, Before: current[hg], After: d.minimum[hg]})
			}
		}
	}
	return changes
}

// Update sends one usergroup.update per group that needs a raise, carrying
// the full merged rights list.
func (userRightsKind) Update(ctx context.Context, c rpc.Caller, d userRights, r userGroups) error {
	for _, g := range r.groups {
		rights := rightsOf(g)
		raised := false
		for hg, perm := range d.minimum {
			if rights[hg] < perm {
				rights[hg] = perm
				raised = true
			}
		}
		if !raised {
			continue
		}

		list := make([]map[string]interface{}, 0, len(rights))
		for _, hg := range sortedKeys(rights) {
			list = append(list, map[string]interface{}{"id": hg, "permission": rights[hg]})
		}
		payload := Params{"usrgrpid": g.Str("usrgrpid"), "hostgroup_rights": list}
		if _, err := write(ctx, c, "usergroup.update", "usrgrpids", payload); err != nil {
			return err
		}
	}
	return nil
}

// EnsureUserRights raises the permissions of every user group of a user on
// the named host groups.
func EnsureUserRights(ctx context.Context, c rpc.Caller, username string, rights []catalog.Right) (engine.StepResult, error) {
	d := userRights{username: username, minimum: make(map[string]int, len(rights))}
	for _, r := range rights {
		id, err := HostGroupID(ctx, c, r.HostGroup)
		if err != nil {
			return engine.StepResult{Kind: "userrights", Key: username}, err
		}
		if r.Permission > d.minimum[id] {
			d.minimum[id] = r.Permission
		}
	}
	return Ensure[userRights, userGroups](ctx, c, userRightsKind{}, d)
}

func rightsOf(g Object) map[string]int {
	out := make(map[string]int)
	for _, r := range g.List("hostgroup_rights") {
		perm, _ := strconv.Atoi(r.Str("permission"))
		out[r.Str("id")] = perm
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
