// Package client provides the `floq` command-line client.
//
// Commands talk to a running server over HTTP by default, or gRPC with
// --transport grpc. Addresses come from --http / --grpc or the FLOQ_HTTP,
// FLOQ_GRPC and FLOQ_TRANSPORT environment variables.
//
// Usage
//
//	floq send -q orders --data '{"amount": 12}'
//	floq receive -q orders --wait 20s
//	floq ack -q orders <receipt>
//	floq extend -q orders --by 1m <receipt>
//	floq counts -q orders
//	floq dlq list -q orders --filter 'receive_count > 3'
//	floq dlq redrive -q orders <id>
package client
