package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// MediaPayload is one media entry of a user.
type MediaPayload struct {
	MediaTypeID string `json:"mediatypeid"`
	SendTo      string `json:"sendto"`
	Active      int    `json:"active"`
	Severity    int    `json:"severity"`
	Period      string `json:"period"`
}

type userMediaDesired struct {
	username  string
	mediaType string
	userID    string
	MediaPayload
}

// mediaFields are the media members written back when a user's media list is
// replaced.
var mediaFields = []string{"mediaid", "mediatypeid", "sendto", "active", "severity", "period"}

// userMediaKind manages one media entry inside the media list of a user. The
// API only replaces the whole list, so every write carries the other entries
// unchanged.
type userMediaKind struct{}

func (userMediaKind) Name() string { return "usermedia" }
func (userMediaKind) ID(r Object) string { return r.Str("mediaid") }

func (userMediaKind) Key(d userMediaDesired) string {
	return d.username + "/" + d.mediaType
}

func (userMediaKind) Lookup(ctx context.Context, c rpc.Caller, d userMediaDesired) (Object, bool, error) {
	medias, err := userMedias(ctx, c, d.userID)
	if err != nil {
		return nil, false, err
	}
	for _, m := range medias {
		if m.Str("mediatypeid") == d.MediaTypeID {
			return m, true, nil
		}
	}
	return nil, false, nil
}

// Create appends the entry to the user's media list. user.update answers with
// the user id, so the new entry is read back for its mediaid.
func (k userMediaKind) Create(ctx context.Context, c rpc.Caller, d userMediaDesired) (string, error) {
	medias, err := userMedias(ctx, c, d.userID)
	if err != nil {
		return "", err
	}
	list := append(copyMedias(medias, "", nil), toObject(d.MediaPayload))
	if _, err := write(ctx, c, "user.update", "userids", Params{"userid": d.userID, "medias": list}); err != nil {
		return "", err
	}

	m, found, err := k.Lookup(ctx, c, d)
	if err != nil {
		return "", err
	}
	if !found {
		return "", engine.NewApplicationError("media not found after user.update", nil).
			WithResource(k.Key(d)).WithOperation("user.update")
	}
	return k.ID(m), nil
}

func (userMediaKind) Diff(d userMediaDesired, r Object) []engine.Change {
	return diffPayload(d.MediaPayload, r)
}

func (userMediaKind) Update(ctx context.Context, c rpc.Caller, d userMediaDesired, r Object) error {
	medias, err := userMedias(ctx, c, d.userID)
	if err != nil {
		return err
	}
	id := r.Str("mediaid")
	list := copyMedias(medias, id, withID("mediaid", id, d.MediaPayload))
	_, err = write(ctx, c, "user.update", "userids", Params{"userid": d.userID, "medias": list})
	return err
}

func userMedias(ctx context.Context, c rpc.Caller, userID string) ([]Object, error) {
	obj, found, err := first(ctx, c, "user.get", Params{
		"output":       []string{"userid"},
		"userids":      []string{userID},
		"selectMedias": "extend",
	})
	if err != nil || !found {
		return nil, err
	}
	return obj.List("medias"), nil
}

// copyMedias copies a media list in order, putting replacement in place of
// the media with id replaced.
func copyMedias(medias []Object, replaced string, replacement map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(medias)+1)
	for _, m := range medias {
		if replaced != "" && m.Str("mediaid") == replaced {
			out = append(out, replacement)
			continue
		}
		kept := make(map[string]interface{}, len(mediaFields))
		for _, f := range mediaFields {
			if v, ok := m[f]; ok {
				kept[f] = v
			}
		}
		out = append(out, kept)
	}
	return out
}

// EnsureUserMedia attaches a media type to a user, enabled for the given
// severities (all when zero) and period (always when empty).
func EnsureUserMedia(ctx context.Context, c rpc.Caller, um catalog.UserMedia) (engine.StepResult, error) {
	d := userMediaDesired{
		username:  um.Username,
		mediaType: um.MediaType,
		MediaPayload: MediaPayload{
			SendTo:   um.SendTo,
			Severity: um.Severity,
			Period:   orDefault(um.Period, "1-7,00:00-24:00"),
		},
	}
	if d.Severity == 0 {
		d.Severity = 63
	}
	fail := func(err error) (engine.StepResult, error) {
		return engine.StepResult{Kind: "usermedia", Key: userMediaKind{}.Key(d)}, err
	}

	var err error
	if d.userID, err = UserID(ctx, c, um.Username); err != nil {
		return fail(err)
	}
	if d.MediaTypeID, err = MediaTypeID(ctx, c, um.MediaType); err != nil {
		return fail(err)
	}
	return Ensure[userMediaDesired, Object](ctx, c, userMediaKind{}, d)
}
