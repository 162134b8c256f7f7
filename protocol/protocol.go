// Package protocol implements the minechat wire format: a server-to-client
// stream of newline-terminated UTF-8 text, one message per line.
package protocol

import (
	"bytes"
	"strings"
	"time"
)

// MaxLineLength is the longest message body kept from a single frame.
// Bytes past this limit are dropped up to the next newline.
const MaxLineLength = 64 * 1024

// TimestampLayout is the receipt-time format used on the console and,
// when enabled, in the history file (e.g. "[15.10.26 09:41]").
const TimestampLayout = "02.01.06 15:04"

// ChatLine is one message received from the server. Text is opaque.
type ChatLine struct {
	Text       string
	ReceivedAt time.Time
}

// Decode turns a raw frame (without its trailing newline) into a ChatLine.
// It reports ok=false for blank frames, which carry no message.
func Decode(frame []byte, receivedAt time.Time) (line ChatLine, ok bool) {
	frame = bytes.TrimSuffix(frame, []byte("\r"))
	text := strings.ToValidUTF8(string(frame), "\uFFFD")
	if strings.TrimSpace(text) == "" {
		return ChatLine{}, false
	}
	return ChatLine{Text: text, ReceivedAt: receivedAt}, true
}

// Stamp renders a line prefixed with its receipt time, without a trailing
// newline. An empty layout returns the bare text.
func Stamp(line ChatLine, layout string) string {
	if layout == "" {
		return line.Text
	}
	return "[" + line.ReceivedAt.Format(layout) + "] " + line.Text
}
