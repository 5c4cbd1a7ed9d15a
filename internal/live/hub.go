// Package live fans out newly posted comments to readers watching an
// article over a WebSocket.
package live

import (
	"sync"

	"conduit-backend/internal/models"
)

// Hub is an in-process publish/subscribe registry keyed by article id
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]map[chan *models.Comment]struct{}
	buffer int
}

// NewHub creates a hub whose subscribers buffer up to buffer comments
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[int64]map[chan *models.Comment]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for comments on articleID. The returned cancel
// function unregisters and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(articleID int64) (<-chan *models.Comment, func()) {
	ch := make(chan *models.Comment, h.buffer)

	h.mu.Lock()
	if h.subs[articleID] == nil {
		h.subs[articleID] = make(map[chan *models.Comment]struct{})
	}
	h.subs[articleID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[articleID], ch)
			if len(h.subs[articleID]) == 0 {
				delete(h.subs, articleID)
			}
			close(ch)
		})
	}
}

// Publish delivers comment to every subscriber of its article. Subscribers
// whose buffer is full miss the comment rather than block the publisher.
// It returns the number of subscribers that received it.
func (h *Hub) Publish(comment *models.Comment) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs[comment.ArticleID] {
		select {
		case ch <- comment:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of active subscribers for articleID
func (h *Hub) Subscribers(articleID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[articleID])
}
