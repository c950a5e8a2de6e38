package gateway

import "context"

// Choice is one selectable option in an interactive prompt.
type Choice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Messenger delivers outbound messages to a user. Implementations own the
// wire format of the channel; the flow only decides what to present.
type Messenger interface {
	SendText(ctx context.Context, userID, body string) error
	SendList(ctx context.Context, userID, body string, choices []Choice) error
	SendButtons(ctx context.Context, userID, body string, choices []Choice) error
}

// Renderer localizes a template for a user before delivery. It is a pure
// formatting call with no effect on flow state.
type Renderer interface {
	Render(ctx context.Context, userID, template string, vars map[string]string) string
}

// ServiceContext is the user's clinic/service context loaded at session start.
type ServiceContext struct {
	ClinicID        string
	ServiceID       string
	BookingType     string
	DurationMinutes int
	ReminderOptIn   bool
}

// ProfileStore is the read-only lookup of a user's service context.
type ProfileStore interface {
	ServiceContext(ctx context.Context, userID string) (ServiceContext, error)
}
