package ipc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service the shell exposes to its windows.
const ServiceName = "speaknative.shell.v1.Shell"

// ShellServer is implemented by the shell process.
type ShellServer interface {
	GetSharedToken(ctx context.Context) (string, error)
	SetSharedToken(ctx context.Context, token string) error
	RemoveSharedToken(ctx context.Context) error
	HideQuickAccess(ctx context.Context) error
	ShowMainWindow(ctx context.Context) error
	OpenGoogleLogin(ctx context.Context) error
	// ForwardArgs receives the command line of a second launch.
	ForwardArgs(ctx context.Context, args []string) error
	// Subscribe streams events for role until ctx ends or send fails.
	Subscribe(ctx context.Context, role string, send func(*Event) error) error
}

// Register installs srv on s.
func Register(s *grpc.Server, srv ShellServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary adapts a typed handler to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(ShellServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ShellServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ShellServer), ctx, req.(*Req))
			})
		},
	}
}

func noReply(err error) (*empty, error) {
	if err != nil {
		return nil, err
	}
	return &empty{}, nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShellServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetSharedToken", func(s ShellServer, ctx context.Context, _ *empty) (*tokenMessage, error) {
			token, err := s.GetSharedToken(ctx)
			if err != nil {
				return nil, err
			}
			return &tokenMessage{Token: token}, nil
		}),
		unary("SetSharedToken", func(s ShellServer, ctx context.Context, in *tokenMessage) (*empty, error) {
			return noReply(s.SetSharedToken(ctx, in.Token))
		}),
		unary("RemoveSharedToken", func(s ShellServer, ctx context.Context, _ *empty) (*empty, error) {
			return noReply(s.RemoveSharedToken(ctx))
		}),
		unary("HideQuickAccess", func(s ShellServer, ctx context.Context, _ *empty) (*empty, error) {
			return noReply(s.HideQuickAccess(ctx))
		}),
		unary("ShowMainWindow", func(s ShellServer, ctx context.Context, _ *empty) (*empty, error) {
			return noReply(s.ShowMainWindow(ctx))
		}),
		unary("OpenGoogleLogin", func(s ShellServer, ctx context.Context, _ *empty) (*empty, error) {
			return noReply(s.OpenGoogleLogin(ctx))
		}),
		unary("ForwardArgs", func(s ShellServer, ctx context.Context, in *argsMessage) (*empty, error) {
			return noReply(s.ForwardArgs(ctx, in.Args))
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(subscribeRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ShellServer).Subscribe(stream.Context(), in.Role, func(ev *Event) error {
					return stream.SendMsg(ev)
				})
			},
		},
	},
}
