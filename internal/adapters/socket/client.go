package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client connects to the hotword daemon over a Unix socket.
type Client struct {
	sockPath string
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Step advances one stream by one token. If the reply is stale the caller
// must restart its stream from state 0 under reply.Generation.
func (c *Client) Step(generation uint64, state, token int) (*StepReply, error) {
	var result StepReply
	err := c.callInto(Request{
		ID:     "1",
		Method: MethodStep,
		Params: StepParams{Generation: generation, State: state, Token: token},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Feed runs tokens through a fresh stream starting at state 0.
func (c *Client) Feed(tokens []int) (*FeedResult, error) {
	var result FeedResult
	if err := c.callInto(Request{
		ID:     "1",
		Method: MethodFeed,
		Params: FeedParams{Tokens: tokens},
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FeedText segments text with the daemon's vocabulary and feeds the units.
func (c *Client) FeedText(text string) (*FeedResult, error) {
	var result FeedResult
	if err := c.callInto(Request{
		ID:     "1",
		Method: MethodFeed,
		Params: FeedParams{Text: text},
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Spot sends a transcript and returns the phrases found in it.
func (c *Client) Spot(text string) (*SpotResult, error) {
	var result SpotResult
	if err := c.callInto(Request{
		ID:     "1",
		Method: MethodSpot,
		Params: SpotParams{Text: text},
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	var result HealthResult
	if err := c.callInto(Request{ID: "1", Method: MethodHealth}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reload asks the daemon to rebuild its graph, with an extended timeout.
func (c *Client) Reload() (*ReloadResult, error) {
	resp, err := c.callWithTimeout(Request{
		ID:     "1",
		Method: MethodReload,
	}, 60*time.Second)
	if err != nil {
		return nil, err
	}
	var result ReloadResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	_, err := c.call(Request{
		ID:     "1",
		Method: MethodShutdown,
	})
	return err
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) callInto(req Request, dst interface{}) error {
	resp, err := c.call(req)
	if err != nil {
		return err
	}
	return decodeResult(resp, dst)
}

// decodeResult re-marshals the generic result into dst.
func decodeResult(resp *Response, dst interface{}) error {
	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(resultJSON, dst); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

func (c *Client) call(req Request) (*Response, error) {
	return c.callWithTimeout(req, 5*time.Second)
}

func (c *Client) callWithTimeout(req Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Set deadline for the whole request/response
	conn.SetDeadline(time.Now().Add(timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return &resp, nil
}
