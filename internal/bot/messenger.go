package bot

import "context"

// Button is one keyboard key. URL makes it an inline link button;
// RequestLocation asks the client to share the user's location.
type Button struct {
	Text            string
	URL             string
	RequestLocation bool
}

// Keyboard is a reply or inline keyboard attached to a message.
type Keyboard struct {
	Rows    [][]Button
	Inline  bool
	OneTime bool
}

// Message is an outbound chat message.
type Message struct {
	Text     string
	HTML     bool
	Keyboard *Keyboard
}

// Messenger delivers messages to a chat. Implemented by the transport.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg Message) error
	SendPhoto(ctx context.Context, chatID int64, photoURL string) error
}
