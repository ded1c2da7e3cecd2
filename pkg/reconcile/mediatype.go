package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

const (
	mediaTypeWebhook   = 4
	eventSourceTrigger = 0
)

// MediaTypePayload is the desired webhook media type.
type MediaTypePayload struct {
	Name             string                   `json:"name"`
	Type             int                      `json:"type"`
	Status           int                      `json:"status"`
	Script           string                   `json:"script"`
	Timeout          string                   `json:"timeout"`
	Parameters       []catalog.Parameter      `json:"parameters"`
	MessageTemplates []MessageTemplatePayload `json:"message_templates,omitempty"`
}

// MessageTemplatePayload is a default message. Recovery is 0 for problem and
// 1 for recovery events.
type MessageTemplatePayload struct {
	EventSource int    `json:"eventsource"`
	Recovery    int    `json:"recovery"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
}

type mediaTypeKind struct{}

func (mediaTypeKind) Name() string { return "mediatype" }
func (mediaTypeKind) Key(d MediaTypePayload) string { return d.Name }
func (mediaTypeKind) ID(r Object) string { return r.Str("mediatypeid") }

func (mediaTypeKind) Lookup(ctx context.Context, c rpc.Caller, d MediaTypePayload) (Object, bool, error) {
	params := byName("name", d.Name)
	params["selectMessageTemplates"] = "extend"
	return first(ctx, c, "mediatype.get", params)
}

func (mediaTypeKind) Create(ctx context.Context, c rpc.Caller, d MediaTypePayload) (string, error) {
	return create(ctx, c, "mediatype.create", "mediatypeids", d)
}

func (mediaTypeKind) Diff(d MediaTypePayload, r Object) []engine.Change {
	return diffPayload(d, r)
}

func (mediaTypeKind) Update(ctx context.Context, c rpc.Caller, d MediaTypePayload, r Object) error {
	_, err := write(ctx, c, "mediatype.update", "mediatypeids", withID("mediatypeid", r.Str("mediatypeid"), d))
	return err
}

// EnsureMediaType converges a webhook media type. The script must already be
// resolved by the catalog loader.
func EnsureMediaType(ctx context.Context, c rpc.Caller, mt catalog.MediaType) (engine.StepResult, error) {
	d := MediaTypePayload{
		Name:       mt.Name,
		Type:       mediaTypeWebhook,
		Script:     mt.Script,
		Timeout:    orDefault(mt.Timeout, "30s"),
		Parameters: mt.Parameters,
	}
	if d.Parameters == nil {
		d.Parameters = []catalog.Parameter{}
	}
	for _, m := range mt.Messages {
		tmpl := MessageTemplatePayload{EventSource: eventSourceTrigger, Subject: m.Subject, Message: m.Message}
		if m.Recovery {
			tmpl.Recovery = 1
		}
		d.MessageTemplates = append(d.MessageTemplates, tmpl)
	}
	return Ensure[MediaTypePayload, Object](ctx, c, mediaTypeKind{}, d)
}
