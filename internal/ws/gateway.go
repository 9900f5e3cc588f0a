// Package ws is the transport collaborator: a WebSocket gateway that
// carries submit/commit/ack frames between remote clients and the sync
// engine. Delivery ordering guarantees are per connection, matching the
// engine's in-order-per-client expectation; retry and backoff are the
// remote client's concern.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/cowork-labs/coedit/internal/collab"
)

// Gateway bridges WebSocket connections to a collab.Registry.
type Gateway struct {
	registry *collab.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway over registry.
func NewGateway(registry *collab.Registry, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP routes:
//
//	POST /documents                  create a document
//	GET  /documents/{id}             fetch a snapshot
//	GET  /documents/{id}/ws?client=  join and stream
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/documents", g.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/documents/{id}", g.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}/ws", g.handleStream).Methods(http.MethodGet)
	return r
}

type createRequest struct {
	Title string `json:"title"`
	Owner string `json:"owner"`
}

type createResponse struct {
	DocID string `json:"doc_id"`
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}

	id := g.registry.CreateDocument(req.Title, req.Owner)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createResponse{DocID: id})
}

type snapshotResponse struct {
	DocID    string `json:"doc_id"`
	Revision int    `json:"revision"`
	Content  string `json:"content"`
}

func (g *Gateway) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	rev, content, ok := g.registry.Snapshot(docID)
	if !ok {
		http.Error(w, "unknown document", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshotResponse{DocID: docID, Revision: rev, Content: content})
}

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		http.Error(w, "client query parameter is required", http.StatusBadRequest)
		return
	}

	ctrl, ok := g.registry.Controller(docID)
	if !ok {
		http.Error(w, "unknown document", http.StatusNotFound)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "doc", docID, "client", clientID, "err", err)
		return
	}

	// Subscribe before taking the snapshot: a commit landing in between is
	// then both reflected in the snapshot and queued, and the write loop
	// drops the duplicate. The reverse order loses such a commit entirely -
	// the snapshot predates it and the queue never saw it.
	queue := ctrl.Subscribe(clientID)
	rev, content, err := g.registry.Join(docID, clientID)
	if err != nil {
		ctrl.Unsubscribe(clientID)
		conn.Close()
		return
	}
	logger := g.logger.With("doc", docID, "client", clientID)
	logger.Info("stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	sess := &stream{
		conn:    conn,
		docID:   docID,
		client:  clientID,
		gw:      g,
		queue:   queue,
		snapRev: rev,
		logger:  logger,
	}

	go sess.writeLoop(ctx)

	if err := sess.send(Frame{Type: TypeSnapshot, Revision: rev, Content: content}); err != nil {
		cancel()
		g.teardown(sess)
		return
	}

	sess.readLoop(ctx)
	cancel()
	g.teardown(sess)
}

func (g *Gateway) teardown(s *stream) {
	g.registry.Leave(s.docID, s.client)
	s.conn.Close()
	s.logger.Info("stream closed")
}

// stream is one client's WebSocket connection to one document.
type stream struct {
	conn   *websocket.Conn
	docID  string
	client string
	gw     *Gateway
	queue  *collab.Queue
	logger *slog.Logger

	// snapRev is the revision of the join snapshot. Commits at or below it
	// are already in the snapshot and must not be delivered again.
	snapRev int

	writeMu sync.Mutex
}

// send writes a frame. gorilla permits one concurrent writer; the mutex
// serializes the write loop against rejection frames sent from the read
// loop.
func (s *stream) send(f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(f)
}

// readLoop consumes frames from the client until the connection drops.
// Per-connection ordering gives the engine its in-order-per-client
// delivery; rejections go back to this client only.
func (s *stream) readLoop(ctx context.Context) {
	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read loop ended", "err", err)
			}
			return
		}

		switch f.Type {
		case TypeSubmit:
			s.handleSubmit(ctx, f)
		case TypeCursor:
			if f.Cursor != nil {
				s.gw.registry.UpdateCursor(s.docID, s.client, *f.Cursor)
			}
		default:
			s.sendError("", "unknown frame type "+f.Type)
		}
	}
}

func (s *stream) handleSubmit(ctx context.Context, f Frame) {
	if f.Op == nil {
		s.sendError("", "submit frame without op")
		return
	}
	op, err := decodeOp(f.Op)
	if err != nil {
		s.sendError("", err.Error())
		return
	}

	if _, _, err := s.gw.registry.Submit(ctx, s.docID, s.client, op); err != nil {
		var re *collab.RejectError
		if errors.As(err, &re) {
			s.sendReject(re)
			return
		}
		s.sendError(op.ID, err.Error())
	}
	// The ack arrives through the delivery queue like every broadcast, so
	// the client observes commits and its own acks in revision order.
}

func (s *stream) sendReject(re *collab.RejectError) {
	if err := s.send(Frame{Type: TypeError, Code: string(re.Code), OpID: re.OpID, Message: re.Message}); err != nil {
		s.logger.Debug("rejection frame not delivered", "err", err)
	}
}

func (s *stream) sendError(opID, msg string) {
	if err := s.send(Frame{Type: TypeError, OpID: opID, Message: msg}); err != nil {
		s.logger.Debug("error frame not delivered", "err", err)
	}
}

// writeLoop drains the delivery queue to the connection. It owns all
// writes after the initial snapshot.
func (s *stream) writeLoop(ctx context.Context) {
	for {
		for {
			e, ok := s.queue.TryDequeue()
			if !ok {
				break
			}
			var f Frame
			switch e.Type {
			case collab.EventCommit:
				if e.Revision <= s.snapRev {
					continue // already in the join snapshot
				}
				f = Frame{Type: TypeCommit, Revision: e.Revision, Op: encodeOp(e.Op)}
			case collab.EventAck:
				f = Frame{Type: TypeAck, Revision: e.Revision, OpID: e.OpID}
			default:
				continue
			}
			if err := s.send(f); err != nil {
				s.logger.Debug("write loop ended", "err", err)
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case _, open := <-s.queue.Wait():
			if !open && s.queue.Len() == 0 {
				return
			}
		}
	}
}
