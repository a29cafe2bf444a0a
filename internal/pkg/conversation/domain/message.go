package domain

import (
	"strings"
	"time"
)

// Sender identifies who authored a message.
// "internal" is a private agent-only note and is never shown to the end user.
type Sender string

const (
	SenderUser     Sender = "user"
	SenderAgent    Sender = "agent"
	SenderBot      Sender = "bot"
	SenderInternal Sender = "internal"
	SenderSystem   Sender = "system"
)

// AttachmentKind discriminates message content carried next to the text body.
type AttachmentKind string

const (
	AttachmentText  AttachmentKind = "text"
	AttachmentImage AttachmentKind = "image"
)

// Attachment references a binary resource attached to a message.
type Attachment struct {
	Kind AttachmentKind
	URL  string
}

// Message is the atomic transcript unit. It carries no stored primary key;
// identity for reconciliation purposes is the fingerprint (see SameMessage).
type Message struct {
	Sender    Sender
	Text      string
	Timestamp time.Time

	// AgentID is set only when Sender is agent or internal.
	AgentID    string
	Attachment *Attachment
}

// FingerprintTolerance is the window within which a client-stamped and a
// server-stamped copy of the same logical message count as identical. The
// same message can arrive once from the live channel and once from the
// historical store with timestamps up to ~1-2s apart.
const FingerprintTolerance = 1500 * time.Millisecond

// Valid reports whether the message carries enough to be placed in a
// transcript. Events missing both text and attachment, or missing a sender,
// are reconciliation noise and are dropped.
func (m Message) Valid() bool {
	if m.Sender == "" {
		return false
	}
	return strings.TrimSpace(m.Text) != "" || m.attachmentURL() != "" || m.Sender == SenderSystem
}

func (m Message) attachmentURL() string {
	if m.Attachment == nil {
		return ""
	}
	return m.Attachment.URL
}

// fingerprintKey is the timestamp-free part of a message fingerprint.
func (m Message) fingerprintKey() string {
	return string(m.Sender) + "\x00" + m.Text + "\x00" + m.attachmentURL()
}

// SameMessage reports whether a and b are copies of one logical message:
// matching sender, text and attachment, with timestamps inside the
// fingerprint tolerance window.
func SameMessage(a, b Message) bool {
	if a.fingerprintKey() != b.fingerprintKey() {
		return false
	}
	d := a.Timestamp.Sub(b.Timestamp)
	if d < 0 {
		d = -d
	}
	return d <= FingerprintTolerance
}
