// Package gateway defines the boundary between the booking flow and its
// messaging collaborators: the inbound message variants the flow consumes,
// and the outbound/templating/profile interfaces it calls.
package gateway

// Inbound is a tagged union over the message kinds the channel can deliver.
// Handlers switch exhaustively on the concrete type instead of digging
// through nested payload maps.
type Inbound interface {
	inbound()
}

// Text is a free-text message typed by the user.
type Text struct {
	Body string `json:"body"`
}

// ListReply is the option a user picked from a single-choice list prompt.
type ListReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonReply is the button a user tapped on a button prompt.
type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (Text) inbound()        {}
func (ListReply) inbound()   {}
func (ButtonReply) inbound() {}

// ChoiceID returns the selected option id for reply variants, or "" for text.
func ChoiceID(msg Inbound) string {
	switch m := msg.(type) {
	case ListReply:
		return m.ID
	case ButtonReply:
		return m.ID
	}
	return ""
}
