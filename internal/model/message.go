package model

import "time"

// Attachment is a named binary part of a message.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// OutgoingMessage is the transport-agnostic shape of a message to be sent.
// Body is plain text; any confidentiality transform is applied before the
// message reaches the codec.
type OutgoingMessage struct {
	From        string
	Recipients  []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// IncomingMessage is the parsed form of a retrieved message.
type IncomingMessage struct {
	// UID is the server-assigned message id within the fetched mailbox.
	UID uint32

	MessageID   string
	From        string
	Recipients  []string
	Subject     string
	Date        time.Time
	Body        string
	Attachments []Attachment
}
