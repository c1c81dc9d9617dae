// Package codec converts between the transport-agnostic message model and
// wire-format MIME bytes. Bodies are plain text at this layer: any
// confidentiality transform happens before Build or after Parse, never
// inside the codec.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/nhle/mailvault/internal/model"
)

// ErrMalformedMessage is returned by Parse when the raw bytes cannot be
// split into header and body sections.
var ErrMalformedMessage = errors.New("malformed message")

// Build serializes an outgoing message into wire-format MIME bytes: sender,
// joined recipient list, subject, a text/plain body, and one named binary
// part per attachment. The multipart boundary and Message-Id are unique per
// build.
func Build(msg model.OutgoingMessage) ([]byte, error) {
	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})

	to := make([]*mail.Address, 0, len(msg.Recipients))
	for _, rcpt := range msg.Recipients {
		to = append(to, &mail.Address{Address: rcpt})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetMsgIDList("Message-Id", []string{messageID(msg.From)})

	var buf bytes.Buffer

	if len(msg.Attachments) == 0 {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := gomail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("creating message writer: %w", err)
		}
		if _, err := io.WriteString(w, msg.Body); err != nil {
			return nil, fmt.Errorf("writing body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing message writer: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	var th gomail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("creating body part: %w", err)
	}
	if _, err := io.WriteString(tw, msg.Body); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing body part: %w", err)
	}

	for _, att := range msg.Attachments {
		var ah gomail.AttachmentHeader
		ah.SetFilename(att.Filename)
		mimeType := att.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		ah.SetContentType(mimeType, nil)

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("creating attachment %q: %w", att.Filename, err)
		}
		if _, err := aw.Write(att.Data); err != nil {
			return nil, fmt.Errorf("writing attachment %q: %w", att.Filename, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("closing attachment %q: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Parse is the inverse of Build. It tolerates body-only payloads with zero
// attachments, and returns ErrMalformedMessage when the raw bytes cannot be
// split into header and body sections.
func Parse(raw []byte) (*model.IncomingMessage, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	defer mr.Close()

	msg := &model.IncomingMessage{}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.Recipients = append(msg.Recipients, addr.Address)
		}
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedMessage, readErr)
			}
			// Keep the first text part as the body; further inline
			// parts (e.g. an HTML alternative) are ignored.
			if msg.Body == "" && (contentType == "" || strings.HasPrefix(contentType, "text/")) {
				msg.Body = string(body)
			}

		case *gomail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				return nil, fmt.Errorf("%w: reading attachment %q: %v", ErrMalformedMessage, filename, readErr)
			}
			msg.Attachments = append(msg.Attachments, model.Attachment{
				Filename: filename,
				MIMEType: contentType,
				Data:     data,
			})
		}
	}

	return msg, nil
}

// messageID builds a unique Message-Id using the sender's domain.
func messageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i+1 < len(from) {
		domain = from[i+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.New(), domain)
}
