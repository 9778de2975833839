// Package textproto implements ports.SessionSource as a client of the real
// out-of-process Wi-Fi session daemon (§6), talking the line-oriented text
// command/query protocol over a long-lived TCP or Unix-domain connection
// using net/textproto, mirroring the connection-lifecycle conventions of
// the teacher's gRPC client/server pair (Dial once, reconnect on error).
package textproto

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// Client is a ports.SessionSource backed by a real daemon connection.
type Client struct {
	network, addr string

	mu       sync.Mutex
	conn     net.Conn
	proto    *textproto.Conn
	lastSync time.Time
}

// Dial connects to the session daemon at addr over network (e.g. network
// "unix" with addr "/run/wmap.sock", or "tcp" with "127.0.0.1:8081").
func Dial(network, addr string) (*Client, error) {
	c := &Client{network: network, addr: addr}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := net.DialTimeout(c.network, c.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("textproto: dial %s/%s: %w", c.network, c.addr, err)
	}
	c.conn = conn
	c.proto = textproto.NewConn(conn)
	return nil
}

// roundTrip writes one line and reads one line back, reconnecting once on
// any transport error (the daemon is treated as a singleton per §4.12
// "shared resources").
func (c *Client) roundTrip(line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.send(line)
	if err != nil {
		if cerr := c.connect(); cerr != nil {
			return "", fmt.Errorf("textproto: reconnect after %v: %w", err, cerr)
		}
		reply, err = c.send(line)
	}
	return reply, err
}

func (c *Client) send(line string) (string, error) {
	if c.proto == nil {
		return "", fmt.Errorf("textproto: not connected")
	}
	id := c.proto.Next()
	c.proto.StartRequest(id)
	err := c.proto.PrintfLine("%s", line)
	c.proto.EndRequest(id)
	if err != nil {
		return "", err
	}
	c.proto.StartResponse(id)
	defer c.proto.EndResponse(id)
	return c.proto.ReadLine()
}

func (c *Client) Command(ctx context.Context, cmd string) error {
	reply, err := c.roundTrip(cmd)
	if err != nil {
		return err
	}
	if reply != "" && reply != "OK" {
		return fmt.Errorf("textproto: command %q rejected: %s", cmd, reply)
	}
	return nil
}

func (c *Client) APCount(ctx context.Context) (int, error) {
	reply, err := c.roundTrip("get_ap_count")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(reply)
}

func (c *Client) AP(ctx context.Context, i int) (domain.APObservation, error) {
	reply, err := c.roundTrip(fmt.Sprintf("get_ap(%d)", i))
	if err != nil {
		return domain.APObservation{}, err
	}
	var ap domain.APObservation
	if err := json.Unmarshal([]byte(reply), &ap); err != nil {
		return domain.APObservation{}, fmt.Errorf("textproto: decode get_ap(%d): %w", i, err)
	}
	return ap, nil
}

func (c *Client) STACount(ctx context.Context) (int, error) {
	reply, err := c.roundTrip("get_sta_count")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(reply)
}

func (c *Client) STA(ctx context.Context, i int) (domain.STAObservation, error) {
	reply, err := c.roundTrip(fmt.Sprintf("get_sta(%d)", i))
	if err != nil {
		return domain.STAObservation{}, err
	}
	var sta domain.STAObservation
	if err := json.Unmarshal([]byte(reply), &sta); err != nil {
		return domain.STAObservation{}, fmt.Errorf("textproto: decode get_sta(%d): %w", i, err)
	}
	return sta, nil
}

// Poll reads event lines already buffered by the daemon, bounded by
// deadline; it never blocks past it (§4.12 step 3: "100 ms non-blocking
// poll").
func (c *Client) Poll(ctx context.Context, deadline time.Duration) ([]domain.SessionEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("textproto: not connected")
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	defer c.conn.SetReadDeadline(time.Time{})

	var events []domain.SessionEvent
	r := bufio.NewReader(c.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			break // deadline exceeded or no data buffered; not an error for polling
		}
		var evt rawEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		events = append(events, evt.toDomain())
	}
	return events, nil
}

type rawEvent struct {
	AP  *domain.APObservation  `json:"ap,omitempty"`
	STA *domain.STAObservation `json:"sta,omitempty"`
}

func (e rawEvent) toDomain() domain.SessionEvent {
	return domain.SessionEvent{AP: e.AP, STA: e.STA}
}

// NeedsSync reports the §4.12 step 3 ~60s full-resync ticker.
func (c *Client) NeedsSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastSync) > 60*time.Second {
		c.lastSync = time.Now()
		return true
	}
	return false
}

func (c *Client) Pause(ctx context.Context) error  { return c.Command(ctx, "wifi.recon off") }
func (c *Client) Resume(ctx context.Context) error { return c.Command(ctx, "wifi.recon on") }

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proto != nil {
		return c.proto.Close()
	}
	return nil
}
