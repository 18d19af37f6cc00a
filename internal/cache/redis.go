package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RedisConfig captures the connection parameters of the Redis cache backend.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
}

const (
	defaultRedisTimeout = 5 * time.Second
	redisKeyPrefix      = "shopadmin:"
	redisScanCount      = "200"
)

// RedisClient is a Store over a single RESP connection. It only issues the commands the entity
// cache and the login limiter need: GET, SET, DEL, SCAN, INCR, PEXPIRE and PTTL, plus AUTH and
// SELECT while connecting. Calls are serialised; a transport failure drops the connection and
// the next call redials.
type RedisClient struct {
	cfg  RedisConfig
	mu   sync.Mutex
	conn *respConn
}

// NewRedisClient connects eagerly so that a bad address or credentials fail at start.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}

	client := &RedisClient{cfg: cfg}
	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.connectLocked(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// Close drops the connection.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

// Get returns the value stored under key. A missing key is not an error.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reply, err := c.call(ctx, "GET", redisKey(key))
	if err != nil {
		return nil, false, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("redis: GET replied %T", v)
	}
}

// Set stores value under key. A non-positive ttl stores it without expiry.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", redisKey(key), string(value)}
	if ms := ttl.Milliseconds(); ms > 0 {
		args = append(args, "PX", strconv.FormatInt(ms, 10))
	}
	reply, err := c.call(ctx, args...)
	if err != nil {
		return err
	}
	return expectOK("SET", reply)
}

// Delete removes keys, ignoring missing ones.
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]string, 0, len(keys)+1)
	args = append(args, "DEL")
	for _, key := range keys {
		args = append(args, redisKey(key))
	}
	_, err := c.call(ctx, args...)
	return err
}

// DeletePattern walks the keyspace with SCAN MATCH and deletes each batch it returns.
func (c *RedisClient) DeletePattern(ctx context.Context, pattern string) error {
	match := redisKey(pattern)
	cursor := "0"
	for {
		reply, err := c.call(ctx, "SCAN", cursor, "MATCH", match, "COUNT", redisScanCount)
		if err != nil {
			return err
		}
		next, keys, err := parseScanReply(reply)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if _, err := c.call(ctx, append([]string{"DEL"}, keys...)...); err != nil {
				return err
			}
		}
		if next == "0" {
			return nil
		}
		cursor = next
	}
}

// IncrementWithTTL counts a hit in the window that starts with the first hit. It returns the
// count and the time left in the window.
func (c *RedisClient) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = redisKey(key)
	count, err := c.callInt(ctx, "INCR", key)
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if _, err := c.callInt(ctx, "PEXPIRE", key, strconv.FormatInt(window.Milliseconds(), 10)); err != nil {
			return 0, 0, err
		}
	}

	left, err := c.callInt(ctx, "PTTL", key)
	if err != nil || left < 0 {
		return count, window, nil
	}
	return count, time.Duration(left) * time.Millisecond, nil
}

func redisKey(key string) string {
	if strings.HasPrefix(key, redisKeyPrefix) {
		return key
	}
	return redisKeyPrefix + key
}

func (c *RedisClient) callInt(ctx context.Context, args ...string) (int64, error) {
	reply, err := c.call(ctx, args...)
	if err != nil {
		return 0, err
	}
	n, ok := reply.(int64)
	if !ok {
		return 0, fmt.Errorf("redis: %s replied %T", args[0], reply)
	}
	return n, nil
}

// call runs one command. Server error replies are returned as errors without dropping the
// connection; transport failures drop it.
func (c *RedisClient) call(ctx context.Context, args ...string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	reply, err := c.conn.roundTrip(deadline(ctx, c.cfg.Timeout), args)
	var serverErr redisError
	if err != nil && !errors.As(err, &serverErr) {
		_ = c.dropLocked()
	}
	return reply, err
}

func (c *RedisClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var dialer interface {
		DialContext(ctx context.Context, network, address string) (net.Conn, error)
	} = &net.Dialer{}
	if c.cfg.TLS {
		dialer = &tls.Dialer{NetDialer: &net.Dialer{}}
	}
	raw, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("redis: dial %s: %w", c.cfg.Address, err)
	}
	conn := &respConn{conn: raw, reader: bufio.NewReader(raw)}

	var handshake [][]string
	switch {
	case c.cfg.Username != "":
		handshake = append(handshake, []string{"AUTH", c.cfg.Username, c.cfg.Password})
	case c.cfg.Password != "":
		handshake = append(handshake, []string{"AUTH", c.cfg.Password})
	}
	if c.cfg.DB > 0 {
		handshake = append(handshake, []string{"SELECT", strconv.Itoa(c.cfg.DB)})
	}

	limit := deadline(ctx, c.cfg.Timeout)
	for _, args := range handshake {
		reply, err := conn.roundTrip(limit, args)
		if err == nil {
			err = expectOK(args[0], reply)
		}
		if err != nil {
			_ = raw.Close()
			return fmt.Errorf("redis: %s failed: %w", args[0], err)
		}
	}

	c.conn = conn
	return nil
}

func (c *RedisClient) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.conn.Close()
	c.conn = nil
	return err
}

func deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}

func expectOK(command string, reply any) error {
	if s, ok := reply.(string); ok && strings.EqualFold(s, "OK") {
		return nil
	}
	return fmt.Errorf("redis: %s replied %v", command, reply)
}

func parseScanReply(reply any) (string, []string, error) {
	parts, ok := reply.([]any)
	if !ok || len(parts) != 2 {
		return "", nil, fmt.Errorf("redis: unexpected SCAN reply %T", reply)
	}
	cursor, ok := parts[0].([]byte)
	if !ok {
		return "", nil, fmt.Errorf("redis: unexpected SCAN cursor %T", parts[0])
	}
	raw, ok := parts[1].([]any)
	if !ok {
		return "", nil, fmt.Errorf("redis: unexpected SCAN keys %T", parts[1])
	}
	keys := make([]string, 0, len(raw))
	for _, item := range raw {
		if key, ok := item.([]byte); ok {
			keys = append(keys, string(key))
		}
	}
	return string(cursor), keys, nil
}

// redisError is an error reply sent by the server, e.g. "-ERR wrong number of arguments".
type redisError string

func (e redisError) Error() string { return "redis: " + string(e) }

// respConn frames commands and replies on one connection.
type respConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (r *respConn) roundTrip(limit time.Time, args []string) (any, error) {
	if err := r.conn.SetDeadline(limit); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(r.conn, encodeCommand(args)); err != nil {
		return nil, err
	}
	return readReply(r.reader)
}

// encodeCommand renders args as a RESP array of bulk strings.
func encodeCommand(args []string) string {
	var b strings.Builder
	b.WriteString("*" + strconv.Itoa(len(args)) + "\r\n")
	for _, arg := range args {
		b.WriteString("$" + strconv.Itoa(len(arg)) + "\r\n")
		b.WriteString(arg)
		b.WriteString("\r\n")
	}
	return b.String()
}

// readReply decodes one RESP2 value: simple strings as string, errors as redisError,
// integers as int64, bulk strings as []byte (nil when absent) and arrays as []any.
func readReply(r *bufio.Reader) (any, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

	switch kind {
	case '+':
		return line, nil
	case '-':
		return nil, redisError(line)
	case ':':
		return strconv.ParseInt(line, 10, 64)
	case '$':
		size, err := strconv.Atoi(line)
		if err != nil || size < 0 {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return nil, errors.New("redis: bulk string missing CRLF")
		}
		return buf[:size], nil
	case '*':
		count, err := strconv.Atoi(line)
		if err != nil || count < 0 {
			return nil, err
		}
		items := make([]any, count)
		for i := range items {
			if items[i], err = readReply(r); err != nil {
				return nil, err
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("redis: unexpected reply type %q", kind)
	}
}
