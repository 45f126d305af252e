package websocket

import (
	"encoding/json"
	"sync"
)

// Hub WebSocket 连接管理中心
// 按会话令牌分组，外部渠道的异步回复通过这里推送给订阅方
type Hub struct {
	// 按会话令牌分组的连接
	sessions map[string]map[*Connection]bool
	// 注册连接
	register chan *Connection
	// 注销连接
	unregister chan *Connection
	// 广播消息
	broadcast chan *Message
	mu        sync.RWMutex
}

// Connection WebSocket 连接
type Connection struct {
	SessionToken string
	Send         chan []byte
}

// Message 消息
type Message struct {
	SessionToken string
	Data         []byte
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.sessions[conn.SessionToken] == nil {
				h.sessions[conn.SessionToken] = make(map[*Connection]bool)
			}
			h.sessions[conn.SessionToken][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if session, ok := h.sessions[conn.SessionToken]; ok {
				if _, ok := session[conn]; ok {
					delete(session, conn)
					close(conn.Send)
					if len(session) == 0 {
						delete(h.sessions, conn.SessionToken)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if session, ok := h.sessions[msg.SessionToken]; ok {
				for conn := range session {
					select {
					case conn.Send <- msg.Data:
					default:
						close(conn.Send)
						delete(session, conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Register 注册连接
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToSession 向指定会话的所有订阅方推送消息
func (h *Hub) BroadcastToSession(sessionToken string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.broadcast <- &Message{
		SessionToken: sessionToken,
		Data:         jsonData,
	}
	return nil
}
