package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vaitul/partychat/internal/metrics"
	"github.com/vaitul/partychat/internal/party"
)

// Manager keeps one chat session alive across dropped connections.
type Manager struct {
	cfg     Config
	dialer  party.Dialer
	logger  *slog.Logger
	clock   clock.Clock
	store   IdentityStore
	archive Archive

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	status Status
	closed bool

	// Client handle and its generation. Callbacks carry the generation they
	// were created with and are dropped once it no longer matches.
	conn   party.Conn
	gen    uint64
	userID string

	// Room identity. identitySeq changes on every set or clear.
	identity    *Identity
	identitySeq uint64
	inflight    int // create/join calls in progress

	messages     []Message
	lastKeyMilli int64
	anyoneTyping bool

	// Retry state
	attempts       int
	retryDelay     time.Duration
	reloadRequired bool
	timer          *clock.Timer
	timerSeq       uint64

	changes chan State
}

// NewManager creates a session manager. Call Start to connect.
func NewManager(cfg Config, dialer party.Dialer, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	m := &Manager{
		cfg:     cfg,
		dialer:  dialer,
		logger:  logger.With("component", "session"),
		clock:   clock.New(),
		status:  StatusDisconnected,
		changes: make(chan State, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates the first client handle. A construction failure leaves the
// manager Disconnected and returns ErrClientNotInitialized; it does not count
// as a retry.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.ctx != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.setStatusLocked(StatusConnecting)
	old, err := m.connectLocked()
	m.publishLocked()
	m.mu.Unlock()

	closeConn(old)
	return err
}

// Close cancels any pending retry, closes the client handle and closes the
// Changes channel. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelRetryLocked()
	m.gen++
	conn := m.conn
	m.conn = nil
	if m.cancel != nil {
		m.cancel()
	}
	m.setStatusLocked(StatusDisconnected)
	close(m.changes)
	m.mu.Unlock()

	closeConn(conn)
	m.logger.Info("session manager closed")
}

// State returns a snapshot of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Changes delivers state snapshots. Unread snapshots are replaced by newer
// ones, so a slow reader always sees the latest state.
func (m *Manager) Changes() <-chan State {
	return m.changes
}

// CreateRoom creates a room and enters it. Returns the room ID.
func (m *Manager) CreateRoom(ctx context.Context, displayName, icon string) (string, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return "", err
	}

	conn, nickname, gen, seq, err := m.beginEntry(ctx, name)
	if err != nil {
		return "", err
	}
	defer m.endEntry()

	roomID, err := conn.CreateRoom(ctx, nickname, icon)
	metrics.OutboundSends.WithLabelValues(string(party.KindCreateSession), metrics.Result(err)).Inc()
	if err != nil {
		m.logger.Warn("failed to create room", "error", err)
		return "", &ExternalError{Op: "create room", Err: err}
	}

	m.mu.Lock()
	if m.closed || gen != m.gen || seq != m.identitySeq {
		m.mu.Unlock()
		m.logger.Info("discarding superseded create result", "room_id", roomID)
		return "", ErrSuperseded
	}
	m.enterLocked(Identity{
		DisplayName: name,
		Nickname:    nickname,
		RoomID:      roomID,
		Icon:        icon,
	}, nil)
	m.mu.Unlock()

	m.logger.Info("created room", "room_id", roomID, "nickname", nickname)
	m.saveProfile(name, icon)
	return roomID, nil
}

// JoinRoom joins an existing room and replaces the message list with its
// history.
func (m *Manager) JoinRoom(ctx context.Context, displayName, roomID, icon string) error {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return err
	}

	conn, nickname, gen, seq, err := m.beginEntry(ctx, name)
	if err != nil {
		return err
	}
	defer m.endEntry()

	list, err := conn.JoinRoom(ctx, nickname, roomID, icon)
	metrics.OutboundSends.WithLabelValues(string(party.KindJoinSession), metrics.Result(err)).Inc()
	if err != nil {
		m.logger.Warn("failed to join room", "room_id", roomID, "error", err)
		return &ExternalError{Op: "join room", Err: err}
	}

	m.mu.Lock()
	if m.closed || gen != m.gen || seq != m.identitySeq {
		m.mu.Unlock()
		m.logger.Info("discarding superseded join result", "room_id", roomID)
		return ErrSuperseded
	}
	var history []party.ChatMessage
	if list != nil {
		history = list.Messages
	}
	m.enterLocked(Identity{
		DisplayName: name,
		Nickname:    nickname,
		RoomID:      roomID,
		Icon:        icon,
	}, history)
	m.mu.Unlock()

	m.logger.Info("joined room", "room_id", roomID, "nickname", nickname, "history", len(history))
	m.saveProfile(name, icon)
	return nil
}

// SendMessage sends a chat message. The message list changes only when the
// service echoes it back.
func (m *Manager) SendMessage(body string) error {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return ErrNotInRoom
	}
	conn := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	err := conn.Send(party.KindSendMessage, party.SendMessageData{Body: body})
	metrics.OutboundSends.WithLabelValues(string(party.KindSendMessage), metrics.Result(err)).Inc()
	if err != nil {
		m.logger.Warn("failed to send message", "error", err)
		return &ExternalError{Op: "send message", Err: err}
	}
	return nil
}

// SetTyping reports typing presence. It does nothing outside a room and
// failures are only logged.
func (m *Manager) SetTyping(typing bool) {
	m.mu.Lock()
	conn := m.conn
	ok := m.identity != nil && m.status == StatusConnected && conn != nil
	m.mu.Unlock()

	if !ok {
		return
	}

	err := conn.Send(party.KindTypingPresence, party.SetTypingData{Typing: typing})
	metrics.OutboundSends.WithLabelValues(string(party.KindTypingPresence), metrics.Result(err)).Inc()
	if err != nil {
		m.logger.Debug("failed to set typing presence", "typing", typing, "error", err)
	}
}

// LeaveRoom forgets the room identity, the message list and the retry state.
// The connection stays open.
func (m *Manager) LeaveRoom() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity != nil {
		m.logger.Info("left room", "room_id", m.identity.RoomID)
	}
	m.identity = nil
	m.identitySeq++
	m.messages = nil
	m.anyoneTyping = false
	m.attempts = 0
	m.reloadRequired = false
	m.cancelRetryLocked()
	m.publishLocked()
}

// Reconnect restarts the retry schedule at attempt 1. It is allowed only while
// Disconnected with a room identity, and is rejected with ErrReloadRequired
// once the retry budget is spent.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.status != StatusDisconnected || m.identity == nil {
		return ErrNotReconnectable
	}
	if m.attempts >= m.cfg.MaxAttempts {
		return ErrReloadRequired
	}

	m.attempts = 1
	m.reloadRequired = false
	m.scheduleRetryLocked()
	m.publishLocked()
	return nil
}

// beginEntry checks the connection, waits the join grace period and derives
// the qualified nickname for a create or join.
func (m *Manager) beginEntry(ctx context.Context, name string) (party.Conn, string, uint64, uint64, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, "", 0, 0, ErrClosed
	}
	if m.status != StatusConnected {
		m.mu.Unlock()
		return nil, "", 0, 0, ErrNotConnected
	}
	if m.conn == nil {
		m.mu.Unlock()
		return nil, "", 0, 0, ErrClientNotInitialized
	}
	gen := m.gen
	m.inflight++
	m.mu.Unlock()

	if err := m.sleep(ctx, m.cfg.JoinGrace); err != nil {
		m.endEntry()
		return nil, "", 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen || m.status != StatusConnected {
		m.inflight--
		return nil, "", 0, 0, ErrNotConnected
	}
	return m.conn, Qualify(name, m.userIDLocked()), gen, m.identitySeq, nil
}

func (m *Manager) endEntry() {
	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()
}

// enterLocked stores a new identity and resets the message list to history.
func (m *Manager) enterLocked(id Identity, history []party.ChatMessage) {
	m.identity = &id
	m.identitySeq++
	m.messages = historyMessages(history)
	m.anyoneTyping = false
	m.attempts = 0
	m.reloadRequired = false
	m.cancelRetryLocked()
	m.publishLocked()
}

func (m *Manager) saveProfile(name, icon string) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveProfile(name, icon); err != nil {
		m.logger.Warn("failed to save profile", "error", err)
	}
}

// connectLocked replaces the client handle with a fresh one. It returns the
// replaced handle, which the caller closes after releasing m.mu: a handle's
// Close may race its own OnClosed, and OnClosed takes m.mu.
func (m *Manager) connectLocked() (party.Conn, error) {
	m.gen++
	m.userID = ""
	old := m.conn
	m.conn = nil

	conn, err := m.dialer.Dial(m.handlers(m.gen))
	if err != nil {
		m.setStatusLocked(StatusDisconnected)
		m.logger.Error("failed to create chat client", "error", err)
		return old, fmt.Errorf("%w: %w", ErrClientNotInitialized, err)
	}
	m.conn = conn
	return old, nil
}

func closeConn(c party.Conn) {
	if c != nil {
		c.Close()
	}
}

func (m *Manager) handlers(gen uint64) party.Handlers {
	return party.Handlers{
		OnReady:   func() { m.onReady(gen) },
		OnClosed:  func() { m.onClosed(gen) },
		OnMessage: func(f party.Frame) { m.onMessage(gen, f) },
	}
}

func (m *Manager) onReady(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || gen != m.gen {
		m.logger.Debug("ignoring ready from stale client", "gen", gen)
		return
	}

	m.setStatusLocked(StatusConnected)
	m.reloadRequired = false
	m.logger.Info("connected")

	// With a room, attempts are reset once the rejoin succeeds.
	if m.identity != nil {
		go m.rejoin(gen, m.identitySeq, *m.identity)
	} else {
		m.attempts = 0
	}
	m.publishLocked()
}

func (m *Manager) onClosed(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || gen != m.gen {
		m.logger.Debug("ignoring close from stale client", "gen", gen)
		return
	}

	m.conn = nil
	m.setStatusLocked(StatusDisconnected)
	m.logger.Warn("disconnected", "in_room", m.identity != nil, "attempts", m.attempts)

	m.afterDisconnectLocked()
	m.publishLocked()
}

// afterDisconnectLocked schedules the next automatic retry, or gives up once
// the budget is spent.
func (m *Manager) afterDisconnectLocked() {
	if m.identity == nil {
		return
	}
	if m.attempts >= m.cfg.MaxAttempts {
		m.cancelRetryLocked()
		m.reloadRequired = true
		metrics.RetriesExhausted.Inc()
		m.logger.Warn("reconnect attempts exhausted, reload required",
			"room_id", m.identity.RoomID,
			"attempts", m.attempts,
		)
		return
	}
	m.attempts++
	m.scheduleRetryLocked()
}

// scheduleRetryLocked replaces any pending retry with one for the current
// attempt.
func (m *Manager) scheduleRetryLocked() {
	m.cancelRetryLocked()

	delay := backoffDelay(m.attempts, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.retryDelay = delay
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(delay, func() { m.retry(seq) })

	metrics.ReconnectsScheduled.Inc()
	m.logger.Info("reconnect scheduled", "attempt", m.attempts, "delay", delay)
}

func (m *Manager) cancelRetryLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
	m.retryDelay = 0
}

func (m *Manager) retry(seq uint64) {
	m.mu.Lock()
	if m.closed || seq != m.timerSeq || m.identity == nil || m.status != StatusDisconnected {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.retryDelay = 0

	m.logger.Info("reconnecting", "attempt", m.attempts, "room_id", m.identity.RoomID)
	m.setStatusLocked(StatusConnecting)
	old, err := m.connectLocked()
	if err != nil {
		m.afterDisconnectLocked()
	}
	m.publishLocked()
	m.mu.Unlock()

	closeConn(old)
}

// rejoin replays the identity on a fresh connection. A failure falls back to
// Disconnected and keeps the handle, so its close event counts the next
// attempt through onClosed.
func (m *Manager) rejoin(gen, seq uint64, id Identity) {
	if err := m.sleep(m.ctx, m.cfg.RejoinGrace); err != nil {
		return
	}

	m.mu.Lock()
	if m.closed || gen != m.gen || seq != m.identitySeq || m.conn == nil {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	nickname := Qualify(id.DisplayName, m.userIDLocked())
	m.mu.Unlock()

	ctx := m.ctx
	if m.cfg.RejoinTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.RejoinTimeout)
		defer cancel()
	}

	list, err := conn.JoinRoom(ctx, nickname, id.RoomID, id.Icon)
	metrics.Rejoins.WithLabelValues(metrics.Result(err)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || gen != m.gen || seq != m.identitySeq || m.conn != conn {
		m.logger.Debug("discarding stale rejoin result", "room_id", id.RoomID)
		return
	}

	if err != nil {
		m.logger.Warn("failed to rejoin room after reconnect",
			"room_id", id.RoomID,
			"attempts", m.attempts,
			"error", err,
		)
		m.setStatusLocked(StatusDisconnected)
		m.publishLocked()
		return
	}

	m.attempts = 0
	m.identity.Nickname = nickname
	if list != nil {
		m.messages = historyMessages(list.Messages)
	}
	m.logger.Info("rejoined room", "room_id", id.RoomID, "nickname", nickname)
	m.publishLocked()
}

func (m *Manager) onMessage(gen uint64, f party.Frame) {
	in, err := decodeInbound(f)
	if err != nil {
		m.logger.Warn("dropping undecodable frame", "type", f.Type, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || gen != m.gen {
		return
	}
	metrics.InboundEvents.WithLabelValues(in.kind.String()).Inc()

	changed := false
	if in.userID != "" && in.userID != m.userID {
		m.userID = in.userID
		changed = true
		m.logger.Debug("user id assigned", "user_id", in.userID)
	}

	if in.kind != inboundNone && m.identity == nil && m.inflight == 0 {
		m.logger.Debug("dropping chat event outside a room", "kind", in.kind)
		in.kind = inboundNone
	}

	switch in.kind {
	case inboundTyping:
		if !in.anyoneTyping || othersTyping(in.usersTyping, m.userID) {
			m.anyoneTyping = in.anyoneTyping
			changed = true
		}

	case inboundHistory:
		m.messages = historyMessages(in.history)
		changed = true

	case inboundMessage:
		msg := m.liveMessageLocked(in.message)
		m.messages = append(m.messages, msg)
		changed = true
		if m.archive != nil && m.identity != nil {
			m.archive.Archive(m.identity.RoomID, msg)
		}
	}

	if changed {
		m.publishLocked()
	}
}

// othersTyping reports whether anyone other than self is in the list.
func othersTyping(users []string, self string) bool {
	for _, u := range users {
		if u != self {
			return true
		}
	}
	return false
}

func historyMessages(history []party.ChatMessage) []Message {
	msgs := make([]Message, 0, len(history))
	for i, cm := range history {
		msgs = append(msgs, toMessage(cm, fmt.Sprintf("%s-%d-%d", cm.PermID, cm.Timestamp, i)))
	}
	return msgs
}

// liveMessageLocked keys a live message with the current time in
// milliseconds, bumped so keys stay unique within a burst.
func (m *Manager) liveMessageLocked(cm party.ChatMessage) Message {
	now := m.clock.Now().UnixMilli()
	if now <= m.lastKeyMilli {
		now = m.lastKeyMilli + 1
	}
	m.lastKeyMilli = now
	return toMessage(cm, fmt.Sprintf("%s-%d-%d", cm.PermID, cm.Timestamp, now))
}

func toMessage(cm party.ChatMessage, key string) Message {
	return Message{
		Key:         key,
		SenderID:    cm.PermID,
		Nickname:    cm.UserNickname,
		DisplayName: DisplayName(cm.UserNickname),
		Body:        cm.Body,
		Icon:        cm.UserIcon,
		IsSystem:    cm.IsSystemMessage,
		Timestamp:   time.UnixMilli(cm.Timestamp),
	}
}

// userIDLocked returns the known user ID, or the wall clock in milliseconds
// when none has arrived yet.
func (m *Manager) userIDLocked() string {
	if m.userID != "" {
		return m.userID
	}
	return strconv.FormatInt(m.clock.Now().UnixMilli(), 10)
}

// sleep waits d on the manager's clock. Zero returns immediately.
func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timer := m.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) setStatusLocked(s Status) {
	m.status = s
	metrics.ConnectionStatus.Set(float64(s))
}

func (m *Manager) snapshotLocked() State {
	s := State{
		Status:         m.status,
		UserID:         m.userID,
		AnyoneTyping:   m.anyoneTyping,
		RetryAttempts:  m.attempts,
		RetryDelay:     m.retryDelay,
		ReloadRequired: m.reloadRequired,
	}
	if m.identity != nil {
		s.RoomID = m.identity.RoomID
		s.Nickname = m.identity.Nickname
		s.Icon = m.identity.Icon
	}
	if len(m.messages) > 0 {
		s.Messages = make([]Message, len(m.messages))
		copy(s.Messages, m.messages)
	}
	return s
}

// publishLocked replaces any unread snapshot with the current one.
func (m *Manager) publishLocked() {
	if m.closed {
		return
	}
	s := m.snapshotLocked()
	select {
	case <-m.changes:
	default:
	}
	select {
	case m.changes <- s:
	default:
	}
}
