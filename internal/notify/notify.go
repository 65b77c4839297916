package notify

import "context"

// Channel is a delivery channel requested for a notification.
type Channel string

const (
	// ChannelInApp is always requested.
	ChannelInApp Channel = "InApp"
	// ChannelEmail is requested only when the caller opted in.
	ChannelEmail Channel = "Email"
)

// Template identifiers keyed to the lifecycle event kind.
const (
	TemplateFormCreated = "FormCreated"
	TemplateFormUpdated = "FormUpdated"
)

// SeverityInfo is the severity of all form change notifications.
const SeverityInfo = "Info"

// Recipient addresses one user. Email and preferred language come from the
// recipient's own directory profile, never the actor's.
type Recipient struct {
	UserID            string `json:"userId"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferredLanguage"`
}

// Request is one batched notification submission: a deep link, the
// requested channels, a template with placeholder data, and up to a
// batch's worth of recipients.
type Request struct {
	AbsoluteRouteURL string            `json:"absoluteRouteUrl"`
	Channels         []Channel         `json:"notificationTypes"`
	TemplateName     string            `json:"templateName"`
	Severity         string            `json:"severity"`
	PlaceholderData  map[string]string `json:"placeholderData"`
	Recipients       []Recipient       `json:"recipients"`
}

// Sink is the outbound notification channel. Queue buffers a request;
// Flush guarantees submission of everything queued so far.
type Sink interface {
	Queue(ctx context.Context, req *Request) error
	Flush(ctx context.Context) error
}
