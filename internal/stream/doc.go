// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides the streaming chat transport.
//
// The chat service answers a POST with a newline-delimited body. Each line
// is either bare text or a JSON object:
//
//	{"text": "...", "data": {"conversation_id": "...", "conversation_title": "..."}}
//	{"text": "...", "responsible_ai_checks": {"safety": {"passed": true, "risk_level": "low"}}}
//
// Decoder turns raw chunks into Records regardless of where chunk
// boundaries fall. Lines that are not structured records are kept as
// literal text and are never dropped.
//
// Session wraps one in-flight response and exposes it as an ordered
// sequence of Deltas that can be cancelled at any time:
//
//	s, err := client.Open(ctx, stream.Request{Message: "hi"}, token)
//	if err != nil {
//	    return err
//	}
//	err = s.Each(func(d stream.Delta) { fmt.Print(d.Text) })
package stream
