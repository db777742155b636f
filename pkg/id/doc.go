// Package id provides the 128-bit, time-sortable identifiers floq assigns to
// messages.
//
// # Format
//
// An ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves creation order, and IDs generated within the
// same millisecond stay strictly increasing by sequence. IDs are never reused
// within a process.
//
// The text form is lowercase hex (32 characters); Parse accepts it back.
//
// Usage
//
//	g := id.NewGenerator()
//	msgID := g.Next()
//	s := msgID.String()
//	back, _ := id.Parse(s)
package id
