package ipc

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/tokenstore"
)

// Client is a window's connection to the shell. It satisfies
// tokenstore.SharedCache.
type Client struct {
	cc *grpc.ClientConn
}

var _ tokenstore.SharedCache = (*Client)(nil)

// Dial prepares a connection to the shell socket. The connection is made
// lazily; a missing shell shows up as tokenstore.ErrUnavailable on first use.
func Dial(socketPath string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = logging.Discard()
	}
	cc, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithChainUnaryInterceptor(ClientUnaryLoggingInterceptor(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shell client: %w", err)
	}
	return &Client{cc: cc}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if out == nil {
		out = &empty{}
	}
	return mapError(c.cc.Invoke(ctx, fullMethod(method), in, out))
}

// mapError turns transport failures into tokenstore.ErrUnavailable so the
// shared store can fall back.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", tokenstore.ErrUnavailable, err)
	}
	return err
}

func (c *Client) GetSharedToken(ctx context.Context) (string, error) {
	var out tokenMessage
	if err := c.invoke(ctx, "GetSharedToken", &empty{}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) SetSharedToken(ctx context.Context, token string) error {
	return c.invoke(ctx, "SetSharedToken", &tokenMessage{Token: token}, nil)
}

func (c *Client) RemoveSharedToken(ctx context.Context) error {
	return c.invoke(ctx, "RemoveSharedToken", &empty{}, nil)
}

// HideQuickAccess hides the quick-access window.
func (c *Client) HideQuickAccess(ctx context.Context) error {
	return c.invoke(ctx, "HideQuickAccess", &empty{}, nil)
}

// ShowMainWindow shows and focuses the main window.
func (c *Client) ShowMainWindow(ctx context.Context) error {
	return c.invoke(ctx, "ShowMainWindow", &empty{}, nil)
}

// OpenGoogleLogin asks the shell to open the external login in the system browser.
func (c *Client) OpenGoogleLogin(ctx context.Context) error {
	return c.invoke(ctx, "OpenGoogleLogin", &empty{}, nil)
}

// ForwardArgs hands a second launch's command line to the running shell.
func (c *Client) ForwardArgs(ctx context.Context, args []string) error {
	return c.invoke(ctx, "ForwardArgs", &argsMessage{Args: args}, nil)
}

// EventStream is an open Subscribe call.
type EventStream struct {
	ctx    context.Context
	stream grpc.ClientStream
}

// Subscribe opens the event stream for role. The stream ends when ctx does.
func (c *Client) Subscribe(ctx context.Context, role string) (*EventStream, error) {
	desc := &serviceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, fullMethod(desc.StreamName))
	if err != nil {
		return nil, mapError(err)
	}
	if err := stream.SendMsg(&subscribeRequest{Role: role}); err != nil {
		return nil, mapError(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, mapError(err)
	}
	return &EventStream{ctx: ctx, stream: stream}, nil
}

// Recv blocks for the next event. It returns io.EOF when the shell closes the
// stream cleanly.
func (s *EventStream) Recv() (*Event, error) {
	ev := new(Event)
	if err := s.stream.RecvMsg(ev); err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mapError(err)
	}
	return ev, nil
}
