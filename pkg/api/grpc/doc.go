// Package grpc exposes the orchestrator's health over the standard gRPC
// health checking protocol.
package grpc
