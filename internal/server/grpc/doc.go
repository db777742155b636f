// Package grpcserver hosts floq.v1.Queues and the standard gRPC health
// service.
//
// Requests and responses are the plain structs of the workqueues service,
// carried by a JSON codec registered under the "json" content-subtype.
// Client sets that subtype on every call:
//
//	conn, _ := grpc.NewClient("localhost:7070", grpc.WithTransportCredentials(insecure.NewCredentials()))
//	c := grpcserver.NewClient(conn)
//	res, err := c.Receive(ctx, &workqueues.ReceiveRequest{Queue: "orders", WaitMs: 5000})
package grpcserver
