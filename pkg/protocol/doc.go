// ABOUTME: Time sync wire protocol package
// ABOUTME: Defines datagram tokens, command decoding and reply encoding
// Package protocol implements the text datagram protocol spoken between
// the time service and its clients.
//
// Every message is a single datagram of at most MaxPayload bytes with no
// framing. Requests are exact ASCII tokens; a successful reply is the
// server's local time rendered with TimestampLayout.
//
// Example:
//
//	cmd, err := protocol.Decode(payload)
//	if cmd.Kind == protocol.KindTimeRequest {
//	    reply := protocol.EncodeReply(time.Now())
//	}
package protocol
