package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
)

// Client drives a Server over a pair of streams, one call at a time.
// It is used by the selftest and by tests.
type Client struct {
	enc *Encoder
	dec *Decoder

	mu     sync.Mutex
	nextID atomic.Int64
}

// NewClient creates a client writing requests to w and reading responses from r.
func NewClient(r io.Reader, w io.Writer) *Client {
	return &Client{enc: NewEncoder(w), dec: NewDecoder(r)}
}

// Call sends one request and waits for its response. A non-nil out
// receives the decoded result. An error response is returned as *RPCError.
// ctx is checked before sending; closing the response stream unblocks a
// pending call.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	id := json.RawMessage(strconv.FormatInt(c.nextID.Add(1), 10))
	req := &Request{JSONRPC: Version, ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = data
	}

	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	resp, err := c.dec.DecodeResponse()
	if err != nil {
		return fmt.Errorf("receive %s: %w", method, err)
	}

	if string(resp.ID) != string(id) {
		return fmt.Errorf("response id %s does not match request id %s", resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Notify sends a request without an id; no response is expected.
func (c *Client) Notify(method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &Request{JSONRPC: Version, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = data
	}
	return c.enc.Encode(req)
}
