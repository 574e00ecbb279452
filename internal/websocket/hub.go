package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 事件类型
const (
	EventContainerUpdated = "container.updated"
	EventContainerDeleted = "container.deleted"
)

// Event 推送给编辑器的容器事件
type Event struct {
	Type        string    `json:"type"`
	ContainerID string    `json:"container_id"`
	Op          string    `json:"op,omitempty"` // 触发事件的布局操作
	InstanceID  string    `json:"instance_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// containerMessage 发往某个容器订阅者的消息
type containerMessage struct {
	containerID string
	data        []byte
}

// Hub 管理所有 WebSocket 连接,按容器分组广播
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 广播消息到所有客户端
	Broadcast chan []byte

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	containerBroadcast chan containerMessage
	stop               chan struct{}

	// 保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		Broadcast:          make(chan []byte),
		Register:           make(chan *Client),
		Unregister:         make(chan *Client),
		containerBroadcast: make(chan containerMessage, 64),
		stop:               make(chan struct{}),
	}
}

// Run 运行 Hub,直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.send(message, func(*Client) bool { return true })

		case msg := <-h.containerBroadcast:
			h.send(msg.data, func(c *Client) bool { return c.ContainerID == msg.containerID })

		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有客户端
func (h *Hub) Stop() {
	close(h.stop)
}

// send 向匹配的客户端发送消息,发送队列已满的客户端被移除
func (h *Hub) send(message []byte, match func(*Client) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			h.remove(client)
		}
	}
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// BroadcastToContainer 向正在编辑某个容器的客户端广播消息
// 调用方可能持有容器锁,队列已满(Hub 未运行或积压)时丢弃消息而不阻塞
func (h *Hub) BroadcastToContainer(containerID string, message []byte) {
	select {
	case h.containerBroadcast <- containerMessage{containerID: containerID, data: message}:
	case <-h.stop:
	default:
		logrus.WithField("container_id", containerID).Debug("Websocket broadcast queue full, dropping message")
	}
}

// Notify 广播容器事件
func (h *Hub) Notify(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		logrus.WithError(err).WithField("container_id", evt.ContainerID).Error("Failed to marshal websocket event")
		return
	}
	h.BroadcastToContainer(evt.ContainerID, data)
}

// ContainerChanged 将布局服务的变更转换为容器事件
func (h *Hub) ContainerChanged(containerID, op, instanceID string) {
	evtType := EventContainerUpdated
	if op == "delete" {
		evtType = EventContainerDeleted
	}
	h.Notify(Event{
		Type:        evtType,
		ContainerID: containerID,
		Op:          op,
		InstanceID:  instanceID,
	})
}

// HasClient 检查客户端是否存在
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return true
		}
	}
	return false
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// GetContainerClientCount 获取某个容器的订阅客户端数量
func (h *Hub) GetContainerClientCount(containerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.clients {
		if client.ContainerID == containerID {
			n++
		}
	}
	return n
}
