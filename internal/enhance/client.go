package enhance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/strum-coach/internal/orchestrator"
)

// Method is the full gRPC method name of the enhancement service.
const Method = "/strumcoach.enhance.v1.Enhancer/Enhance"

// DefaultTimeout bounds every call; enhancement is never worth waiting for.
const DefaultTimeout = 750 * time.Millisecond

// ErrEmptyHint is returned when the service answers without text.
var ErrEmptyHint = errors.New("empty hint")

// #region types
// Request describes a resolved take to the enhancement service.
type Request struct {
	SessionID      string
	TakeID         uint64
	Objective      string
	Intent         string
	Hotspot        string
	Rationale      string
	DiagnosisCodes []string
	Profile        string
}

// Hint is the service's optional wording for the next cue.
type Hint struct {
	Text   string
	Tone   string
	Source string
}

// Invoker is the slice of *grpc.ClientConn the client uses.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion types

// #region client-struct
// Client calls the enhancement service with a hard timeout.
type Client struct {
	conn    *grpc.ClientConn
	invoker Invoker
	timeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewClient connects to the enhancement service. timeout <= 0 means DefaultTimeout.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewClientWithInvoker(conn, timeout)
	c.conn = conn
	return c, nil
}

// NewClientWithInvoker creates a Client over an injected invoker.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv Invoker, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{invoker: inv, timeout: timeout}
}

// Close shuts down the gRPC connection, if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region enhance
// Enhance asks for a hint. Callers treat any error as "no hint".
func (c *Client) Enhance(ctx context.Context, req Request) (Hint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	codes := make([]any, len(req.DiagnosisCodes))
	for i, code := range req.DiagnosisCodes {
		codes[i] = code
	}
	in, err := structpb.NewStruct(map[string]any{
		"session_id":      req.SessionID,
		"take_id":         float64(req.TakeID),
		"objective":       req.Objective,
		"intent":          req.Intent,
		"hotspot":         req.Hotspot,
		"rationale":       req.Rationale,
		"diagnosis_codes": codes,
		"profile":         req.Profile,
	})
	if err != nil {
		return Hint{}, fmt.Errorf("encode request: %w", err)
	}

	out := &structpb.Struct{}
	if err := c.invoker.Invoke(ctx, Method, in, out); err != nil {
		return Hint{}, fmt.Errorf("enhance take %d: %w", req.TakeID, err)
	}

	f := out.GetFields()
	hint := Hint{
		Text:   f["text"].GetStringValue(),
		Tone:   f["tone"].GetStringValue(),
		Source: f["source"].GetStringValue(),
	}
	if hint.Text == "" {
		return Hint{}, ErrEmptyHint
	}
	return hint, nil
}

// #endregion enhance

// #region request-from-outcome
// RequestFrom builds a request from a resolved take.
func RequestFrom(sessionID string, oc orchestrator.TakeOutcome) Request {
	req := Request{
		SessionID: sessionID,
		TakeID:    oc.Finalized.TakeID,
		Objective: oc.Resolution.Objective.String(),
		Intent:    oc.Resolution.Intent.String(),
		Hotspot:   string(oc.Resolution.Hotspot),
		Rationale: oc.Resolution.Rationale,
	}
	if oc.Feedback != nil {
		req.Profile = string(oc.Feedback.DifficultyProfile)
		for _, c := range oc.Feedback.DiagnosisCodes {
			req.DiagnosisCodes = append(req.DiagnosisCodes, string(c))
		}
	}
	return req
}

// #endregion request-from-outcome
