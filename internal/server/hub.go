package server

import (
	"slices"
	"sync"

	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/types"
)

// Hub owns the set of live sockets per room. All state is touched only by
// the Run goroutine; the exported methods queue work onto it and wait.
type Hub struct {
	rooms map[string][]types.ClientInterface

	ops      chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string][]types.ClientInterface),
		ops:   make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run processes hub operations until Stop. Remaining sockets are closed on
// exit.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case op := <-h.ops:
			op()
		case <-h.quit:
			for id := range h.rooms {
				h.closeRoom(id)
			}
			return
		}
	}
}

// Stop ends Run and waits for it.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// do runs fn on the hub goroutine. It reports false if the hub stopped.
func (h *Hub) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case h.ops <- func() { fn(); close(finished) }:
	case <-h.quit:
		return false
	}
	<-finished
	return true
}

// Register adds c to its room.
func (h *Hub) Register(c types.ClientInterface) {
	h.do(func() {
		room := c.GetRoom()
		h.rooms[room] = append(h.rooms[room], c)
	})
}

// Unregister removes c and reports whether it was registered.
func (h *Hub) Unregister(c types.ClientInterface) bool {
	var found bool
	h.do(func() { found = h.remove(c) })
	return found
}

func (h *Hub) remove(c types.ClientInterface) bool {
	room := c.GetRoom()
	clients := h.rooms[room]
	i := slices.Index(clients, c)
	if i < 0 {
		return false
	}
	clients = slices.Delete(clients, i, i+1)
	if len(clients) == 0 {
		delete(h.rooms, room)
	} else {
		h.rooms[room] = clients
	}
	return true
}

// Online lists the names with a live socket in roomID, in connection order,
// each name once.
func (h *Hub) Online(roomID string) []string {
	var names []string
	h.do(func() {
		for _, c := range h.rooms[roomID] {
			if !slices.Contains(names, c.GetName()) {
				names = append(names, c.GetName())
			}
		}
	})
	return names
}

// Deliver sends data to the sockets of roomID. With no names every socket in
// the room gets it; otherwise only sockets of the named users. Sockets that
// cannot keep up are dropped.
func (h *Hub) Deliver(roomID string, data []byte, names ...string) {
	h.do(func() {
		var slow []types.ClientInterface
		for _, c := range h.rooms[roomID] {
			if len(names) > 0 && !slices.Contains(names, c.GetName()) {
				continue
			}
			if !c.SendMessage(data) {
				slow = append(slow, c)
			}
		}
		for _, c := range slow {
			logger.L().Warn().Str("room", roomID).Str("client", c.GetID()).Msg("dropping slow client")
			h.remove(c)
			c.Close()
		}
	})
}

// CloseRoom disconnects every socket of roomID.
func (h *Hub) CloseRoom(roomID string) {
	h.do(func() { h.closeRoom(roomID) })
}

func (h *Hub) closeRoom(roomID string) {
	for _, c := range h.rooms[roomID] {
		c.Close()
	}
	delete(h.rooms, roomID)
}

// CloseUser disconnects every socket of name in any room.
func (h *Hub) CloseUser(name string) {
	h.do(func() {
		for roomID := range h.rooms {
			h.closeMember(roomID, name)
		}
	})
}

// CloseMember disconnects the sockets of name in roomID only.
func (h *Hub) CloseMember(roomID, name string) {
	h.do(func() { h.closeMember(roomID, name) })
}

func (h *Hub) closeMember(roomID, name string) {
	var gone []types.ClientInterface
	for _, c := range h.rooms[roomID] {
		if c.GetName() == name {
			gone = append(gone, c)
		}
	}
	for _, c := range gone {
		h.remove(c)
		c.Close()
	}
}

// Count returns the number of live sockets.
func (h *Hub) Count() int {
	var n int
	h.do(func() {
		for _, clients := range h.rooms {
			n += len(clients)
		}
	})
	return n
}
