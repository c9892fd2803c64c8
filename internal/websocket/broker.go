package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
	"github.com/gorilla/websocket"
)

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	maxMessageSize      = 4 * 1024
	maxConsecutiveDrops = 50
)

// Trade is the payload sent for every execution. Prices and sizes are sent
// both as raw integer units and as decimals when the asset is known.
type Trade struct {
	Book      string         `json:"book"`
	Symbol    string         `json:"symbol"`
	MakerID   model.OrderId  `json:"makerId"`
	TakerID   model.OrderId  `json:"takerId"`
	Side      string         `json:"side"`
	Price     model.Price    `json:"price"`
	Qty       model.Quantity `json:"qty"`
	PriceText string         `json:"priceText,omitempty"`
	QtyText   string         `json:"qtyText,omitempty"`
	Ts        int64          `json:"ts"`
	Seq       uint64         `json:"seq"`
}

type envelope struct {
	Type  string `json:"type"`
	Trade Trade  `json:"trade"`
}

type publishMsg struct {
	topic string
	data  []byte
}

type subscription struct {
	client *Client
	topic  string
}

type Config struct {
	SendBuffer    int
	PublishBuffer int
}

// Hub fans trades out to websocket clients subscribed by book. Topics are
// BookKey strings such as "1:BTC-USD".
type Hub struct {
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan publishMsg
	done        chan struct{}

	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}

	sendBuf  int
	catalog  ledger.Catalog
	seq      atomic.Uint64
	drops    atomic.Uint64
	nClients atomic.Int64
	log      *logger.Logger
	upgrader websocket.Upgrader
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscribed map[string]struct{}
	drops      int
}

// NewHub builds a hub. catalog is optional and only used to render decimals.
func NewHub(cfg Config, catalog ledger.Catalog, log *logger.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = 4096
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan publishMsg, cfg.PublishBuffer),
		done:        make(chan struct{}),
		clients:     make(map[*Client]struct{}),
		topics:      make(map[string]map[*Client]struct{}),
		sendBuf:     cfg.SendBuffer,
		catalog:     catalog,
		log:         log.With(logger.NewField("component", "ws-hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run is the hub event loop; it returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("ws hub started")
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.nClients.Store(int64(len(h.clients)))
			for topic := range c.subscribed {
				h.addSub(c, topic)
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; ok {
				h.addSub(sub.client, sub.topic)
			}

		case sub := <-h.unsubscribe:
			h.removeSub(sub.client, sub.topic)
			delete(sub.client.subscribed, sub.topic)

		case p := <-h.publish:
			for c := range h.topics[p.topic] {
				select {
				case c.send <- p.data:
					c.drops = 0
				default:
					h.drops.Add(1)
					c.drops++
					if c.drops > maxConsecutiveDrops {
						h.log.Warn("evicting slow client", logger.NewField("drops", c.drops))
						h.drop(c)
						_ = c.conn.Close()
					}
				}
			}

		case <-ctx.Done():
			h.log.Info("ws hub shutting down")
			for c := range h.clients {
				h.drop(c)
				_ = c.conn.Close()
			}
			return
		}
	}
}

func (h *Hub) addSub(c *Client, topic string) {
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
	c.subscribed[topic] = struct{}{}
}

func (h *Hub) removeSub(c *Client, topic string) {
	if subs := h.topics[topic]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// drop forgets c and closes its send channel, which stops its writer.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	for topic := range c.subscribed {
		h.removeSub(c, topic)
	}
	close(c.send)
	h.nClients.Store(int64(len(h.clients)))
}

// ServeWS upgrades the request and registers a client. Initial books can be
// passed as ?books=1:BTC-USD,1:ETH-USD.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", logger.NewField("error", err.Error()))
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuf),
		subscribed: make(map[string]struct{}),
	}
	for _, topic := range strings.Split(r.URL.Query().Get("books"), ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			client.subscribed[topic] = struct{}{}
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// send and sendSub hand a request to the event loop unless it has stopped.
func (h *Hub) send(ch chan *Client, c *Client) bool {
	select {
	case ch <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) sendSub(ch chan subscription, sub subscription) bool {
	select {
	case ch <- sub:
		return true
	case <-h.done:
		return false
	}
}

type command struct {
	Type string `json:"type"`
	Book string `json:"book"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.send(c.hub.unregister, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", logger.NewField("error", err.Error()))
			}
			return
		}
		if cmd.Book == "" {
			continue
		}
		sub := subscription{client: c, topic: cmd.Book}
		switch cmd.Type {
		case "subscribe":
			if !c.hub.sendSub(c.hub.subscribe, sub) {
				return
			}
		case "unsubscribe":
			if !c.hub.sendSub(c.hub.unsubscribe, sub) {
				return
			}
		}
	}
}

// writePump owns every write to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PublishTrades queues trades for the subscribers of book. It never blocks:
// when the publish buffer is full the trade is dropped and counted.
func (h *Hub) PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error {
	decimals, known := h.decimals(ctx, book)
	topic := book.String()
	for _, t := range trades {
		msg := Trade{
			Book:    topic,
			Symbol:  book.Symbol(),
			MakerID: t.MakerID,
			TakerID: t.TakerID,
			Side:    strings.ToLower(t.Side.String()),
			Price:   t.Price,
			Qty:     t.Quantity,
			Ts:      t.Timestamp.UnixMilli(),
			Seq:     h.seq.Add(1),
		}
		if known {
			msg.PriceText = util.FromUnits(uint64(t.Price), decimals).String()
			msg.QtyText = util.FromUnits(uint64(t.Quantity), decimals).String()
		}
		data, err := json.Marshal(envelope{Type: "trade", Trade: msg})
		if err != nil {
			return err
		}

		select {
		case h.publish <- publishMsg{topic: topic, data: data}:
		default:
			h.drops.Add(1)
			h.log.WarnContext(ctx, "publish buffer full, dropping trade", logger.NewField("book", topic))
		}
	}
	return nil
}

func (h *Hub) decimals(ctx context.Context, book model.BookKey) (uint8, bool) {
	if h.catalog == nil {
		return 0, false
	}
	asset, err := h.catalog.Asset(ctx, book.Base)
	if err != nil {
		return 0, false
	}
	return asset.Decimals, true
}

// Stats returns the number of connected clients and dropped messages.
func (h *Hub) Stats() (clients int, drops uint64) {
	return int(h.nClients.Load()), h.drops.Load()
}
