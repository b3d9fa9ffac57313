package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/botcharts/internal/api"
)

// Transport is the single shared connection to the trading API.
type Transport interface {
	// Start connects and begins reading.
	Start(ctx context.Context) error

	// Stop closes the connection and releases every subscription.
	Stop(ctx context.Context) error

	// Send issues a request and waits for the response carrying the same req_id.
	// An error object in the response is returned as *api.Error.
	Send(ctx context.Context, req api.Request) (*api.Response, error)

	// Subscribe opens a stream and returns its local id. The callback receives
	// the initial response followed by every push of the stream.
	Subscribe(ctx context.Context, req api.Request, cb Callback) (string, error)

	// Unsubscribe cancels a stream by its local id.
	Unsubscribe(ctx context.Context, id string) error

	// UnsubscribeAll cancels every stream of the given types ("ticks", "candles").
	UnsubscribeAll(ctx context.Context, streams ...string) error

	// IsConnected reports whether the connection is currently up.
	IsConnected() bool

	// Stats returns counters for monitoring.
	Stats() Stats
}

type result struct {
	resp *api.Response
	err  error
}

// pendingReq is a request waiting for its response. sub is set for
// subscription requests so the response can bind the server id.
type pendingReq struct {
	ch  chan result
	sub *subscription
}

// subscription is a live stream known by a local id. serverID is guarded by
// transport.subsMu and changes on every reconnect.
type subscription struct {
	id       string
	stream   string
	req      api.Request
	callback Callback
	queue    *queue[*api.Response]
	canceled atomic.Bool
	serverID string
}

// transport implements the Transport interface.
type transport struct {
	cfg    Config
	logger *slog.Logger

	clientMu sync.RWMutex
	client   Client

	reqID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]*pendingReq

	subsMu     sync.RWMutex
	subs       map[string]*subscription // local id -> subscription
	byServerID map[string]*subscription // server subscription id -> subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	requestsSent     atomic.Int64
	messagesReceived atomic.Int64
	pushesDelivered  atomic.Int64
	pushesDropped    atomic.Int64
	reconnects       atomic.Int64
}

// New creates a Transport. Call Start before sending.
func New(cfg Config, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = time.Second
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = cfg.ReconnectBaseWait
	}

	return &transport{
		cfg:        cfg,
		logger:     logger,
		pending:    make(map[int64]*pendingReq),
		subs:       make(map[string]*subscription),
		byServerID: make(map[string]*subscription),
	}
}

// Start connects to the API.
func (t *transport) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	c := NewClient(t.clientConfig(), t.logger)
	if err := c.Connect(t.ctx); err != nil {
		t.cancel()
		return fmt.Errorf("connect: %w", err)
	}
	t.setClient(c)

	t.wg.Add(1)
	go t.readLoop(c)

	if t.cfg.KeepaliveInterval > 0 {
		t.wg.Add(1)
		go t.keepaliveLoop()
	}

	t.logger.Info("transport started", "url", t.cfg.URL)
	return nil
}

// Stop gracefully shuts down.
func (t *transport) Stop(ctx context.Context) error {
	t.logger.Info("stopping transport")

	if t.cancel != nil {
		t.cancel()
	}

	t.subsMu.Lock()
	for id, sub := range t.subs {
		sub.canceled.Store(true)
		sub.queue.discard()
		delete(t.subs, id)
	}
	clear(t.byServerID)
	t.subsMu.Unlock()

	if c := t.currentClient(); c != nil {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.logger.Warn("shutdown timeout, forcing close")
	}

	t.logger.Info("transport stopped")
	return nil
}

// Send issues a request and waits for its response.
func (t *transport) Send(ctx context.Context, req api.Request) (*api.Response, error) {
	return t.request(ctx, req, nil)
}

// Subscribe opens a stream.
func (t *transport) Subscribe(ctx context.Context, req api.Request, cb Callback) (string, error) {
	if cb == nil {
		return "", errors.New("subscribe: nil callback")
	}

	sub := &subscription{
		id:       uuid.NewString(),
		stream:   streamOf(req),
		req:      req.Clone(),
		callback: cb,
		queue:    newQueue[*api.Response](16),
	}

	t.subsMu.Lock()
	t.subs[sub.id] = sub
	t.subsMu.Unlock()

	t.wg.Add(1)
	go t.deliver(sub)

	resp, err := t.request(ctx, req, sub)
	if err != nil {
		t.drop(sub)
		return "", err
	}
	if resp.SubscriptionID() == "" {
		t.drop(sub)
		return "", ErrNoSubscriptionID
	}

	t.logger.Debug("subscribed",
		"call", req.Name(),
		"id", sub.id,
		"subscription_id", resp.SubscriptionID(),
	)
	return sub.id, nil
}

// Unsubscribe cancels a stream. No callback starts after it returns; a
// callback already running is not waited for.
func (t *transport) Unsubscribe(ctx context.Context, id string) error {
	t.subsMu.Lock()
	sub, ok := t.subs[id]
	if !ok {
		t.subsMu.Unlock()
		return ErrUnknownSubscription
	}
	sub.canceled.Store(true)
	delete(t.subs, id)
	sid := sub.serverID
	if sid != "" {
		delete(t.byServerID, sid)
	}
	t.subsMu.Unlock()

	sub.queue.discard()

	// Still waiting for the server id; the late response forgets it.
	if sid == "" {
		return nil
	}

	if _, err := t.Send(ctx, api.Forget(sid)); err != nil {
		return fmt.Errorf("forget %s: %w", sid, err)
	}

	t.logger.Debug("unsubscribed", "id", id, "subscription_id", sid)
	return nil
}

// UnsubscribeAll cancels every stream of the given types. With no types it
// cancels ticks and candles.
func (t *transport) UnsubscribeAll(ctx context.Context, streams ...string) error {
	if len(streams) == 0 {
		streams = []string{"ticks", "candles"}
	}
	wanted := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		wanted[s] = struct{}{}
	}

	var removed []*subscription
	t.subsMu.Lock()
	for id, sub := range t.subs {
		if _, ok := wanted[sub.stream]; !ok {
			continue
		}
		sub.canceled.Store(true)
		delete(t.subs, id)
		if sub.serverID != "" {
			delete(t.byServerID, sub.serverID)
		}
		removed = append(removed, sub)
	}
	t.subsMu.Unlock()

	for _, sub := range removed {
		sub.queue.discard()
	}

	if _, err := t.Send(ctx, api.ForgetAll(streams...)); err != nil {
		return fmt.Errorf("forget_all: %w", err)
	}

	t.logger.Debug("unsubscribed all", "streams", streams, "count", len(removed))
	return nil
}

// IsConnected returns the current connection state.
func (t *transport) IsConnected() bool {
	c := t.currentClient()
	return c != nil && c.IsConnected()
}

// Stats returns current statistics.
func (t *transport) Stats() Stats {
	t.subsMu.RLock()
	active := len(t.subs)
	t.subsMu.RUnlock()

	t.pendingMu.Lock()
	pending := len(t.pending)
	t.pendingMu.Unlock()

	return Stats{
		Connected:           t.IsConnected(),
		ActiveSubscriptions: active,
		PendingRequests:     pending,
		RequestsSent:        t.requestsSent.Load(),
		MessagesReceived:    t.messagesReceived.Load(),
		PushesDelivered:     t.pushesDelivered.Load(),
		PushesDropped:       t.pushesDropped.Load(),
		Reconnects:          t.reconnects.Load(),
	}
}

func (t *transport) clientConfig() ClientConfig {
	cfg := t.cfg.Client
	cfg.URL = t.cfg.URL
	cfg.Origin = t.cfg.Origin
	return cfg
}

func (t *transport) currentClient() Client {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	return t.client
}

func (t *transport) setClient(c Client) {
	t.clientMu.Lock()
	t.client = c
	t.clientMu.Unlock()
}

// request sends req with a fresh req_id and waits for the matching response.
// For subscriptions the pending entry outlives a cancelled wait so that a
// late response can still be bound or forgotten.
func (t *transport) request(ctx context.Context, req api.Request, sub *subscription) (*api.Response, error) {
	c := t.currentClient()
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}

	id := t.reqID.Add(1)
	msg := req.Clone()
	msg["req_id"] = id
	if sub != nil {
		msg["subscribe"] = 1
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", req.Name(), err)
	}

	p := &pendingReq{ch: make(chan result, 1), sub: sub}
	t.pendingMu.Lock()
	t.pending[id] = p
	t.pendingMu.Unlock()

	if err := c.Send(data); err != nil {
		t.removePending(id)
		return nil, fmt.Errorf("send %s: %w", req.Name(), err)
	}
	t.requestsSent.Add(1)

	var timeout <-chan time.Time
	if _, ok := ctx.Deadline(); !ok && t.cfg.RequestTimeout > 0 {
		timer := time.NewTimer(t.cfg.RequestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-p.ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, r.resp.Error
		}
		return r.resp, nil
	case <-ctx.Done():
		t.abandon(id, sub)
		return nil, ctx.Err()
	case <-timeout:
		t.abandon(id, sub)
		return nil, ErrTimeout
	case <-t.ctx.Done():
		t.removePending(id)
		return nil, ErrStopped
	}
}

func (t *transport) abandon(id int64, sub *subscription) {
	if sub == nil {
		t.removePending(id)
	}
}

func (t *transport) removePending(id int64) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

// failPending wakes every waiter with err.
func (t *transport) failPending(err error) {
	t.pendingMu.Lock()
	pending := t.pending
	t.pending = make(map[int64]*pendingReq)
	t.pendingMu.Unlock()

	for _, p := range pending {
		p.ch <- result{err: err}
	}
}

// drop removes a subscription whose opening request failed.
func (t *transport) drop(sub *subscription) {
	t.subsMu.Lock()
	sub.canceled.Store(true)
	delete(t.subs, sub.id)
	sid := sub.serverID
	if sid != "" {
		delete(t.byServerID, sid)
	}
	t.subsMu.Unlock()

	sub.queue.discard()

	if sid != "" {
		t.forgetAsync(sid)
	}
}

// bind records the server id carried by the first response of a stream and
// queues that response for the callback.
func (t *transport) bind(sub *subscription, resp *api.Response) {
	sid := resp.SubscriptionID()
	if sid == "" {
		return
	}

	t.subsMu.Lock()
	if sub.canceled.Load() {
		t.subsMu.Unlock()
		t.forgetAsync(sid)
		return
	}
	if sub.serverID != "" {
		delete(t.byServerID, sub.serverID)
	}
	sub.serverID = sid
	t.byServerID[sid] = sub
	t.subsMu.Unlock()

	if sub.queue.push(resp) {
		t.pushesDelivered.Add(1)
	}
}

func (t *transport) forgetAsync(sid string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
		defer cancel()

		if _, err := t.Send(ctx, api.Forget(sid)); err != nil {
			t.logger.Debug("forget failed", "subscription_id", sid, "error", err)
		}
	}()
}

// dispatch routes one inbound message: responses by req_id, pushes by
// subscription id.
func (t *transport) dispatch(data []byte) {
	resp, err := api.ParseResponse(data)
	if err != nil {
		t.logger.Warn("dropping malformed message", "error", err)
		return
	}

	if resp.ReqID != 0 {
		t.pendingMu.Lock()
		p, ok := t.pending[resp.ReqID]
		if ok {
			delete(t.pending, resp.ReqID)
		}
		t.pendingMu.Unlock()

		if ok {
			if p.sub != nil && resp.Error == nil {
				t.bind(p.sub, resp)
			}
			p.ch <- result{resp: resp}
			return
		}
	}

	sid := resp.SubscriptionID()
	if sid == "" {
		t.logger.Debug("unsolicited message", "msg_type", resp.MsgType, "req_id", resp.ReqID)
		return
	}

	t.subsMu.RLock()
	sub := t.byServerID[sid]
	t.subsMu.RUnlock()

	if sub == nil || !sub.queue.push(resp) {
		t.pushesDropped.Add(1)
		return
	}
	t.pushesDelivered.Add(1)
}

// deliver runs a subscription's callback until its queue is closed.
func (t *transport) deliver(sub *subscription) {
	defer t.wg.Done()

	for {
		resp, ok := sub.queue.pop()
		if !ok {
			return
		}
		if sub.canceled.Load() {
			continue
		}
		t.invoke(sub, resp)
	}
}

func (t *transport) invoke(sub *subscription, resp *api.Response) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("subscription callback panicked",
				"id", sub.id,
				"msg_type", resp.MsgType,
				"panic", r,
			)
		}
	}()
	sub.callback(resp)
}

// readLoop reads messages from a client until it fails, then hands off to reconnect.
func (t *transport) readLoop(c Client) {
	defer t.wg.Done()

	for {
		select {
		case <-t.ctx.Done():
			return

		case err := <-c.Errors():
			t.logger.Warn("connection error", "error", err)
			t.failPending(ErrConnectionLost)
			t.wg.Add(1)
			go t.reconnect(c)
			return

		case msg, ok := <-c.Messages():
			if !ok {
				return
			}
			t.messagesReceived.Add(1)
			t.dispatch(msg.Data)
		}
	}
}

// keepaliveLoop sends {"ping": 1} so idle connections are not dropped.
func (t *transport) keepaliveLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if !t.IsConnected() {
				continue
			}
			ctx, cancel := context.WithTimeout(t.ctx, t.cfg.KeepaliveInterval)
			if _, err := t.Send(ctx, api.Ping()); err != nil {
				t.logger.Debug("keepalive ping failed", "error", err)
			}
			cancel()
		}
	}
}

// reconnect replaces a failed client with exponential backoff and
// reopens every live subscription.
func (t *transport) reconnect(old Client) {
	defer t.wg.Done()

	old.Close()

	wait := t.cfg.ReconnectBaseWait
	maxWait := t.cfg.ReconnectMaxWait

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-time.After(wait):
		}

		t.logger.Info("attempting reconnection")

		c := NewClient(t.clientConfig(), t.logger)
		if err := c.Connect(t.ctx); err != nil {
			t.logger.Warn("reconnection failed", "error", err, "next_wait", wait*2)

			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
			continue
		}

		t.setClient(c)
		t.reconnects.Add(1)
		t.logger.Info("reconnected")

		t.wg.Add(1)
		go t.readLoop(c)

		t.resubscribe()
		return
	}
}

// resubscribe reopens every subscription on the current client. Local ids
// stay stable; server ids are replaced when the new responses arrive.
func (t *transport) resubscribe() {
	t.subsMu.Lock()
	subs := make([]*subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	clear(t.byServerID)
	for _, sub := range subs {
		sub.serverID = ""
	}
	t.subsMu.Unlock()

	timeout := t.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	for _, sub := range subs {
		if t.ctx.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(t.ctx, timeout)
		_, err := t.request(ctx, sub.req, sub)
		cancel()
		if err != nil {
			t.logger.Warn("resubscribe failed", "id", sub.id, "call", sub.req.Name(), "error", err)
		}
	}

	t.logger.Info("resubscribed", "count", len(subs))
}

// streamOf classifies a subscription request for forget_all.
func streamOf(req api.Request) string {
	if _, ok := req["ticks_history"]; ok {
		if style, _ := req["style"].(string); style == "candles" {
			return "candles"
		}
		return "ticks"
	}
	return req.Name()
}
