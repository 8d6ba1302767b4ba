// Package actorGrpc lets actors talk gRPC while the kernel keeps control of the order of the calls.
package actorGrpc

import (
	"context"
	"sync"

	"google.golang.org/grpc"

	"simkernel/kernel"
)

// Call is an RPC issued by an actor
type Call struct {
	Actor  int
	Target string
	Method string
}

// RPCManager serializes the outgoing gRPC calls of actors through the kernel.
//
// Every unary call is turned into an rpc simcall before it is sent. Calls to
// the same target are dependent, so the exhaustive guides explore every order
// in which they can reach it. Calls to different targets commute.
//
// The call itself is performed synchronously in the context of the actor once
// the simcall has been answered. Contexts with deadlines should not be used,
// real time does not make sense while simulating.
type RPCManager struct {
	// Maps the address of a server to the name used for it in the simulation
	addrTarget map[string]string

	mu    sync.Mutex
	calls []Call
}

// addr is a map from address to target name. Addresses not in the map are used as their own name.
func NewRPCManager(addr map[string]string) *RPCManager {
	return &RPCManager{addrTarget: addr}
}

// Target returns the name used for the server at addr
func (m *RPCManager) Target(addr string) string {
	if target, ok := m.addrTarget[addr]; ok {
		return target
	}
	return addr
}

// Create a UnaryClientInterceptor for the connections used by a.
//
// The interceptor must only be used from the context of a.
func (m *RPCManager) UnaryClientInterceptor(a *kernel.Actor) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		target := m.Target(cc.Target())
		if err := a.RPC(target, method); err != nil {
			return err
		}
		m.mu.Lock()
		m.calls = append(m.calls, Call{Actor: a.ID(), Target: target, Method: method})
		m.mu.Unlock()

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Calls returns the calls issued through the manager, in the order they were sent
func (m *RPCManager) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset forgets the recorded calls
func (m *RPCManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
