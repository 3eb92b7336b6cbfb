package services

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/Cramiac/SyncTunes/internal/clock"
	"github.com/Cramiac/SyncTunes/internal/models"
	"github.com/Cramiac/SyncTunes/internal/playback"
	"github.com/Cramiac/SyncTunes/internal/protocol"

	"github.com/google/uuid"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

type CoordinatorConfig struct {
	Capacity           int
	CodeAttempts       int
	HeartbeatInterval  time.Duration
	HeartbeatMissLimit int
	ReconnectGrace     time.Duration
	IdleTimeout        time.Duration
	OutboxSize         int
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Capacity:           10,
		CodeAttempts:       25,
		HeartbeatInterval:  5 * time.Second,
		HeartbeatMissLimit: 3,
		ReconnectGrace:     30 * time.Second,
		IdleTimeout:        30 * time.Minute,
		OutboxSize:         64,
	}
}

// RoomCoordinator owns all live room state. Each room is an independently
// serialized unit: mutations for one room run under that room's mutex while
// different rooms proceed concurrently. Nothing outside this type mutates a
// room; collaborators get immutable snapshots or submit proposals.
// closedCodeTTL is how long a torn-down room's code keeps answering
// RoomClosed before it falls back to RoomNotFound and can be reissued.
const closedCodeTTL = 10 * time.Minute

type RoomCoordinator struct {
	mu          sync.RWMutex
	rooms       map[string]*roomState
	codes       map[string]string
	closedCodes map[string]time.Time

	cfg      CoordinatorConfig
	archiver Archiver
	now      func() time.Time
	rng      *rand.Rand

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type roomState struct {
	mu           sync.Mutex
	room         models.Room
	members      []*models.Member // join order; members[0] is the host
	machine      *playback.Machine
	subs         map[string]chan protocol.Message
	lastActive   time.Time
	hostName     string
	peakMembers  int
	tracksPlayed int
	closed       bool
}

func NewRoomCoordinator(cfg CoordinatorConfig, archiver Archiver) *RoomCoordinator {
	return &RoomCoordinator{
		rooms:       make(map[string]*roomState),
		codes:       make(map[string]string),
		closedCodes: make(map[string]time.Time),
		cfg:         cfg,
		archiver:    archiver,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the background sweep loop (heartbeat expiry, track-end
// auto-advance, idle teardown).
func (c *RoomCoordinator) Start() {
	go c.sweepLoop()
	log.Printf("room: coordinator started (capacity %d, heartbeat %s)", c.cfg.Capacity, c.cfg.HeartbeatInterval)
}

func (c *RoomCoordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
}

// CreateRoom allocates a room with a fresh join code and the creator as its
// first (and therefore host) member.
func (c *RoomCoordinator) CreateRoom(displayName string) (protocol.Snapshot, models.Member, error) {
	now := c.now()
	member := models.Member{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Connection:  models.ConnConnected,
		JoinedAt:    now,
		LastSeen:    now,
	}

	c.mu.Lock()
	code, err := c.allocateCodeLocked()
	if err != nil {
		c.mu.Unlock()
		return protocol.Snapshot{}, models.Member{}, err
	}

	r := &roomState{
		room: models.Room{
			ID:        uuid.NewString(),
			Code:      code,
			Status:    models.RoomStatusActive,
			Capacity:  c.cfg.Capacity,
			HostID:    member.ID,
			CreatedAt: now,
		},
		members:     []*models.Member{&member},
		machine:     playback.NewMachine(),
		subs:        make(map[string]chan protocol.Message),
		lastActive:  now,
		hostName:    displayName,
		peakMembers: 1,
	}
	c.rooms[r.room.ID] = r
	c.codes[code] = r.room.ID
	c.mu.Unlock()

	log.Printf("room: created %s (code %s) by %s", r.room.ID, code, displayName)

	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	return snap, member, nil
}

// JoinRoom adds a member to the room identified by code and returns the
// catch-up snapshot for the joiner. Everyone already in the room is told
// about the new member.
func (c *RoomCoordinator) JoinRoom(code, displayName string) (protocol.Snapshot, models.Member, error) {
	r, err := c.roomByCode(code)
	if err != nil {
		return protocol.Snapshot{}, models.Member{}, err
	}

	now := c.now()
	member := models.Member{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Connection:  models.ConnConnected,
		JoinedAt:    now,
		LastSeen:    now,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return protocol.Snapshot{}, models.Member{}, ErrRoomClosed
	}
	if len(r.members) >= r.room.Capacity {
		r.mu.Unlock()
		return protocol.Snapshot{}, models.Member{}, ErrRoomFull
	}
	r.members = append(r.members, &member)
	if len(r.members) > r.peakMembers {
		r.peakMembers = len(r.members)
	}
	r.lastActive = now

	joined := member
	joined.IsHost = false
	r.broadcastLocked(protocol.TypeMemberJoined, protocol.MemberEvent{
		Member:  joined,
		Members: r.membersLocked(),
	}, member.ID)

	snap := r.snapshotLocked()
	r.mu.Unlock()

	log.Printf("room: %s joined %s (%d members)", displayName, code, len(snap.Members))
	return snap, member, nil
}

// LeaveRoom removes a member. If the host leaves, the longest-tenured
// remaining member is promoted; if nobody remains the room is torn down.
func (c *RoomCoordinator) LeaveRoom(roomID, memberID string) error {
	r, err := c.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	if !r.removeMemberLocked(memberID) {
		r.mu.Unlock()
		return ErrMemberNotFound
	}
	empty := len(r.members) == 0
	if empty {
		r.closeLocked()
	}
	r.mu.Unlock()

	if empty {
		c.reap(r)
	}
	return nil
}

// KickMember removes a member on the host's request.
func (c *RoomCoordinator) KickMember(roomID, actorID, targetID string) error {
	r, err := c.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	if r.hostIDLocked() != actorID {
		r.mu.Unlock()
		return ErrNotAuthorized
	}
	if !r.removeMemberLocked(targetID) {
		r.mu.Unlock()
		return ErrMemberNotFound
	}
	empty := len(r.members) == 0
	if empty {
		r.closeLocked()
	}
	r.mu.Unlock()

	if empty {
		c.reap(r)
	}
	return nil
}

// ProposeTransition applies a member's playback transition under the room's
// serialization point, stamps the next version, and fans the accepted state
// out to every member. When checkVersion is set, a proposal based on a
// version older than the current one is dropped as stale.
func (c *RoomCoordinator) ProposeTransition(roomID, memberID string, t playback.Transition, baseVersion uint64, checkVersion bool) (models.PlaybackState, error) {
	r, err := c.room(roomID)
	if err != nil {
		return models.PlaybackState{}, err
	}

	now := c.now()
	roomNow := clock.RoomNow(now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.PlaybackState{}, ErrRoomClosed
	}
	if r.memberLocked(memberID) == nil {
		return models.PlaybackState{}, ErrMemberNotFound
	}

	prev := r.machine.State()
	if checkVersion && baseVersion < prev.Version {
		return prev, ErrStaleTransition
	}

	queueLen := len(r.machine.Queue())
	st, err := r.machine.Apply(t, memberID, roomNow)
	if err != nil {
		return prev, err
	}
	r.noteTrackChangeLocked(prev, st)
	r.lastActive = now

	r.broadcastLocked(protocol.TypeStateUpdate, st, "")
	if len(r.machine.Queue()) != queueLen {
		r.broadcastLocked(protocol.TypeQueueUpdate, protocol.QueueUpdate{Queue: r.machine.Queue()}, "")
	}
	return st, nil
}

// ApplyRemoteState reconciles a full client-stamped PlaybackState. The
// higher version wins; equal versions are broken deterministically by
// originator id, and the winner of a tie is re-stamped one version higher so
// every member converges on a single state. Losing and duplicate updates are
// dropped without error.
func (c *RoomCoordinator) ApplyRemoteState(roomID, memberID string, st models.PlaybackState) (bool, models.PlaybackState, error) {
	r, err := c.room(roomID)
	if err != nil {
		return false, models.PlaybackState{}, err
	}

	now := c.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, models.PlaybackState{}, ErrRoomClosed
	}
	if r.memberLocked(memberID) == nil {
		return false, models.PlaybackState{}, ErrMemberNotFound
	}

	st.OriginID = memberID
	cur := r.machine.State()
	if !playback.Supersedes(cur, st) {
		return false, cur, nil
	}
	if st.Version == cur.Version {
		st.Version = cur.Version + 1
	}

	r.machine.Replace(st)
	r.noteTrackChangeLocked(cur, st)
	r.lastActive = now
	r.broadcastLocked(protocol.TypeStateUpdate, st, "")
	return true, st, nil
}

// EnqueueTrack appends a track to the room queue. Any member may enqueue.
func (c *RoomCoordinator) EnqueueTrack(roomID, memberID string, track models.TrackRef) ([]models.QueueEntry, error) {
	r, err := c.room(roomID)
	if err != nil {
		return nil, err
	}

	now := c.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	if r.memberLocked(memberID) == nil {
		return nil, ErrMemberNotFound
	}

	r.machine.Enqueue(models.QueueEntry{Track: track, AddedBy: memberID, AddedAt: now})
	r.lastActive = now
	queue := r.machine.Queue()
	r.broadcastLocked(protocol.TypeQueueUpdate, protocol.QueueUpdate{Queue: queue}, "")
	return queue, nil
}

// ClearQueue empties the queue. Host only.
func (c *RoomCoordinator) ClearQueue(roomID, memberID string) error {
	r, err := c.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if r.memberLocked(memberID) == nil {
		return ErrMemberNotFound
	}
	if r.hostIDLocked() != memberID {
		return ErrNotAuthorized
	}

	r.machine.ClearQueue()
	r.lastActive = c.now()
	r.broadcastLocked(protocol.TypeQueueUpdate, protocol.QueueUpdate{Queue: nil}, "")
	return nil
}

// SendChat broadcasts a chat message to everyone currently connected.
// Best effort: no ordering or persistence.
func (c *RoomCoordinator) SendChat(roomID, memberID, text string) (models.ChatMessage, error) {
	r, err := c.room(roomID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.ChatMessage{}, ErrRoomClosed
	}
	m := r.memberLocked(memberID)
	if m == nil {
		return models.ChatMessage{}, ErrMemberNotFound
	}

	msg := models.ChatMessage{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		MemberID:    memberID,
		DisplayName: m.DisplayName,
		Text:        text,
		SentAt:      c.now(),
	}
	r.broadcastLocked(protocol.TypeChat, msg, "")
	return msg, nil
}

// Snapshot returns the room's current full state.
func (c *RoomCoordinator) Snapshot(roomID string) (protocol.Snapshot, error) {
	r, err := c.room(roomID)
	if err != nil {
		return protocol.Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return protocol.Snapshot{}, ErrRoomClosed
	}
	return r.snapshotLocked(), nil
}

// Reconnect marks a member connected again and, when its last-known version
// is stale, hands back the full snapshot instead of replaying what it
// missed.
func (c *RoomCoordinator) Reconnect(roomID, memberID string, lastVersion uint64) (*protocol.Snapshot, error) {
	r, err := c.room(roomID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	m := r.memberLocked(memberID)
	if m == nil {
		return nil, ErrMemberNotFound
	}

	m.LastSeen = c.now()
	if m.Connection != models.ConnConnected {
		m.Connection = models.ConnConnected
		r.broadcastLocked(protocol.TypeMemberUpdated, protocol.MemberEvent{
			Member:  r.memberViewLocked(*m),
			Members: r.membersLocked(),
		}, memberID)
	}

	if lastVersion >= r.machine.State().Version {
		return nil, nil
	}
	snap := r.snapshotLocked()
	return &snap, nil
}

// MarkAlive records a liveness signal from a member.
func (c *RoomCoordinator) MarkAlive(roomID, memberID string) {
	r, err := c.room(roomID)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	m := r.memberLocked(memberID)
	if m == nil {
		return
	}
	m.LastSeen = c.now()
	if m.Connection == models.ConnReconnecting {
		m.Connection = models.ConnConnected
		r.broadcastLocked(protocol.TypeMemberUpdated, protocol.MemberEvent{
			Member:  r.memberViewLocked(*m),
			Members: r.membersLocked(),
		}, memberID)
	}
}

// Attach marks the member connected, supersedes any previous attachment's
// channel, and takes the catch-up snapshot in the same critical section when
// lastVersion is stale. Updates accepted after the snapshot land on the
// returned channel, so nothing can fall between the two.
func (c *RoomCoordinator) Attach(roomID, memberID string, lastVersion uint64) (<-chan protocol.Message, *protocol.Snapshot, error) {
	r, err := c.room(roomID)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrRoomClosed
	}
	m := r.memberLocked(memberID)
	if m == nil {
		return nil, nil, ErrMemberNotFound
	}

	m.LastSeen = c.now()
	if m.Connection != models.ConnConnected {
		m.Connection = models.ConnConnected
		r.broadcastLocked(protocol.TypeMemberUpdated, protocol.MemberEvent{
			Member:  r.memberViewLocked(*m),
			Members: r.membersLocked(),
		}, memberID)
	}

	if old, ok := r.subs[memberID]; ok {
		close(old)
	}
	ch := make(chan protocol.Message, c.cfg.OutboxSize)
	r.subs[memberID] = ch

	if lastVersion >= r.machine.State().Version {
		return ch, nil, nil
	}
	snap := r.snapshotLocked()
	return ch, &snap, nil
}

// Detach closes the attachment's channel and starts the member's reconnect
// grace period. An attachment that was already superseded by a newer one for
// the same member is a no-op, so its teardown never touches the live member.
func (c *RoomCoordinator) Detach(roomID, memberID string, ch <-chan protocol.Message) {
	r, err := c.room(roomID)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.subs[memberID]
	if !ok || (<-chan protocol.Message)(cur) != ch {
		return
	}
	close(cur)
	delete(r.subs, memberID)

	m := r.memberLocked(memberID)
	if m == nil || m.Connection == models.ConnReconnecting {
		return
	}
	m.Connection = models.ConnReconnecting
	r.broadcastLocked(protocol.TypeMemberUpdated, protocol.MemberEvent{
		Member:  r.memberViewLocked(*m),
		Members: r.membersLocked(),
	}, memberID)
}

// Subscribe opens the member's push channel. Broadcasts are enqueued
// per member; a member that stops draining its outbox loses messages rather
// than blocking the room, and recovers through a resync.
func (c *RoomCoordinator) Subscribe(roomID, memberID string) (<-chan protocol.Message, error) {
	r, err := c.room(roomID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	if r.memberLocked(memberID) == nil {
		return nil, ErrMemberNotFound
	}

	if old, ok := r.subs[memberID]; ok {
		close(old)
	}
	ch := make(chan protocol.Message, c.cfg.OutboxSize)
	r.subs[memberID] = ch
	return ch, nil
}

// Unsubscribe closes the member's push channel if it is still the one
// handed out. Safe to call after the member was removed.
func (c *RoomCoordinator) Unsubscribe(roomID, memberID string, ch <-chan protocol.Message) {
	r, err := c.room(roomID)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.subs[memberID]; ok && (<-chan protocol.Message)(cur) == ch {
		close(cur)
		delete(r.subs, memberID)
	}
}

// RoomIDByCode resolves a join code to a live room id.
func (c *RoomCoordinator) RoomIDByCode(code string) (string, error) {
	r, err := c.roomByCode(code)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRoomClosed
	}
	return r.room.ID, nil
}

func (c *RoomCoordinator) room(roomID string) (*roomState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (c *RoomCoordinator) roomByCode(code string) (*roomState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.codes[code]
	if !ok {
		if _, closed := c.closedCodes[code]; closed {
			return nil, ErrRoomClosed
		}
		return nil, ErrRoomNotFound
	}
	r, ok := c.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (c *RoomCoordinator) allocateCodeLocked() (string, error) {
	for attempt := 0; attempt < c.cfg.CodeAttempts; attempt++ {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[c.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		_, live := c.codes[code]
		_, tomb := c.closedCodes[code]
		if !live && !tomb {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// sweepLoop is the coordinator's background tick: heartbeat expiry, ended
// tracks, idle rooms.
func (c *RoomCoordinator) sweepLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *RoomCoordinator) sweep() {
	c.mu.RLock()
	rooms := make([]*roomState, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.RUnlock()

	now := c.now()
	roomNow := clock.RoomNow(now)
	missWindow := time.Duration(c.cfg.HeartbeatMissLimit) * c.cfg.HeartbeatInterval

	c.mu.Lock()
	for code, closedAt := range c.closedCodes {
		if now.Sub(closedAt) > closedCodeTTL {
			delete(c.closedCodes, code)
		}
	}
	c.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}

		// Heartbeat policy: missed beats put a member into reconnecting,
		// an expired grace period removes it altogether.
		var expired []string
		for _, m := range r.members {
			gone := now.Sub(m.LastSeen)
			if m.Connection == models.ConnConnected && gone > missWindow {
				m.Connection = models.ConnReconnecting
				r.broadcastLocked(protocol.TypeMemberUpdated, protocol.MemberEvent{
					Member:  r.memberViewLocked(*m),
					Members: r.membersLocked(),
				}, m.ID)
			}
			if gone > missWindow+c.cfg.ReconnectGrace {
				expired = append(expired, m.ID)
			}
		}
		for _, id := range expired {
			log.Printf("room: %s missed heartbeats, removing from %s", id, r.room.Code)
			r.removeMemberLocked(id)
		}

		if r.machine.Ended(roomNow) {
			prev := r.machine.State()
			if st, err := r.machine.Apply(playback.Transition{Op: playback.OpAdvance}, "", roomNow); err == nil {
				r.noteTrackChangeLocked(prev, st)
				r.lastActive = now
				r.broadcastLocked(protocol.TypeStateUpdate, st, "")
				r.broadcastLocked(protocol.TypeQueueUpdate, protocol.QueueUpdate{Queue: r.machine.Queue()}, "")
			}
		}

		teardown := len(r.members) == 0 || now.Sub(r.lastActive) > c.cfg.IdleTimeout
		if teardown {
			r.closeLocked()
		}
		r.mu.Unlock()

		if teardown {
			c.reap(r)
		}
	}
}

// reap finalizes a closed room: de-registers it and writes the archive
// record. Runs without holding the room lock so the archive write never
// blocks room traffic.
func (c *RoomCoordinator) reap(r *roomState) {
	c.mu.Lock()
	delete(c.rooms, r.room.ID)
	delete(c.codes, r.room.Code)
	c.closedCodes[r.room.Code] = c.now()
	c.mu.Unlock()

	log.Printf("room: %s (code %s) torn down", r.room.ID, r.room.Code)

	if c.archiver == nil {
		return
	}
	r.mu.Lock()
	rec := models.RoomRecord{
		RoomID:       r.room.ID,
		Code:         r.room.Code,
		HostName:     r.hostName,
		MemberCount:  r.peakMembers,
		TracksPlayed: r.tracksPlayed,
		CreatedAt:    r.room.CreatedAt,
		ClosedAt:     c.now(),
	}
	r.mu.Unlock()
	if err := c.archiver.ArchiveRoom(rec); err != nil {
		log.Printf("room: archive failed for %s: %v", r.room.Code, err)
	}
}

// --- roomState helpers; all require r.mu held ---

func (r *roomState) hostIDLocked() string {
	if len(r.members) == 0 {
		return ""
	}
	return r.members[0].ID
}

func (r *roomState) memberLocked(memberID string) *models.Member {
	for _, m := range r.members {
		if m.ID == memberID {
			return m
		}
	}
	return nil
}

// memberViewLocked decorates a member with the derived host flag.
func (r *roomState) memberViewLocked(m models.Member) models.Member {
	m.IsHost = m.ID == r.hostIDLocked()
	return m
}

func (r *roomState) membersLocked() []models.Member {
	out := make([]models.Member, len(r.members))
	for i, m := range r.members {
		out[i] = r.memberViewLocked(*m)
	}
	return out
}

// removeMemberLocked drops a member, closes its outbox, and re-derives the
// host. The host is never a stored flag: it is always the earliest joiner
// still present, so exactly one host exists while the room has members.
func (r *roomState) removeMemberLocked(memberID string) bool {
	idx := -1
	for i, m := range r.members {
		if m.ID == memberID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	left := *r.members[idx]
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	if ch, ok := r.subs[memberID]; ok {
		close(ch)
		delete(r.subs, memberID)
	}

	r.broadcastLocked(protocol.TypeMemberLeft, protocol.MemberEvent{
		Member:  left,
		Members: r.membersLocked(),
	}, "")

	if newHost := r.hostIDLocked(); newHost != "" && newHost != r.room.HostID {
		r.room.HostID = newHost
		r.broadcastLocked(protocol.TypeHostChanged, protocol.HostChange{
			HostID:  newHost,
			Members: r.membersLocked(),
		}, "")
	}
	return true
}

func (r *roomState) snapshotLocked() protocol.Snapshot {
	room := r.room
	room.HostID = r.hostIDLocked()
	return protocol.Snapshot{
		Room:     room,
		Members:  r.membersLocked(),
		Playback: r.machine.State(),
		Queue:    r.machine.Queue(),
	}
}

func (r *roomState) noteTrackChangeLocked(prev, next models.PlaybackState) {
	if next.Track == nil {
		return
	}
	if prev.Track == nil || prev.Track.ID != next.Track.ID {
		r.tracksPlayed++
	}
}

// closeLocked marks the room closed and severs every push channel. The
// caller must follow up with reap() after releasing the lock.
func (r *roomState) closeLocked() {
	if r.closed {
		return
	}
	r.broadcastLocked(protocol.TypeRoomClosed, nil, "")
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.room.Status = models.RoomStatusClosed
	r.closed = true
}

// broadcastLocked enqueues a message onto every member outbox except the
// excluded originator. Sends never block: a full outbox drops the message
// and the member recovers via resync, so one stalled connection cannot hold
// up the room.
func (r *roomState) broadcastLocked(msgType string, payload interface{}, exclude string) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		log.Printf("room: marshal error for %s: %v", msgType, err)
		return
	}
	for id, ch := range r.subs {
		if id == exclude {
			continue
		}
		select {
		case ch <- msg:
		default:
			log.Printf("room: outbox full for member %s in %s, dropping %s", id, r.room.Code, msgType)
		}
	}
}
