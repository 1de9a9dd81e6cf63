package broadcast

import (
	"sync"
	"time"
)

// 事件类型
const (
	TypeLog      = "log"
	TypeProgress = "progress"
	TypeError    = "error"
	TypeDone     = "done"
)

// Event 推送给 WebSocket 客户端的消息
type Event struct {
	Session   string `json:"session,omitempty"`
	Step      string `json:"step"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Current   int    `json:"current,omitempty"`
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// BroadcastService 广播服务结构
type BroadcastService struct {
	broadcastChan chan Event
	clients       map[*Client]bool
	register      chan *Client
	unregister    chan *Client // 通道用于注销特定客户端
	shutdown      chan struct{}
	closeOnce     sync.Once
	mutex         sync.Mutex
}

// Client 表示一个WebSocket客户端
type Client struct {
	Conn interface{} // WebSocket连接
	Send chan Event  // 通道用于发送消息
}

// NewBroadcastService 创建新的广播服务
func NewBroadcastService() *BroadcastService {
	return &BroadcastService{
		broadcastChan: make(chan Event, 100),
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		shutdown:      make(chan struct{}),
	}
}

// Start 启动广播服务，Close 后返回
func (b *BroadcastService) Start(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case client := <-b.register:
			b.mutex.Lock()
			b.clients[client] = true
			b.mutex.Unlock()
		case client := <-b.unregister:
			b.mutex.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mutex.Unlock()
		case <-b.shutdown:
			b.mutex.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mutex.Unlock()
			return
		case message := <-b.broadcastChan:
			b.mutex.Lock()
			// 发送给所有注册的客户端
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
					// 客户端消费太慢，直接移除
					delete(b.clients, client)
					close(client.Send)
				}
			}
			b.mutex.Unlock()
		}
	}
}

// Publish 发布事件。队列已满时丢弃，不阻塞调用方。
func (b *BroadcastService) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp == "" {
		e.Timestamp = GetTimeStr()
	}
	select {
	case b.broadcastChan <- e:
	default:
	}
}

// SendLog 发送日志消息
func (b *BroadcastService) SendLog(step, msg string) {
	b.Publish(Event{Step: step, Type: TypeLog, Message: msg})
}

// SendProgress 发送进度
func (b *BroadcastService) SendProgress(session, step string, current, total int, msg string) {
	b.Publish(Event{Session: session, Step: step, Type: TypeProgress, Message: msg, Current: current, Total: total})
}

// RegisterClient 注册客户端
func (b *BroadcastService) RegisterClient(conn interface{}) *Client {
	client := &Client{
		Conn: conn,
		Send: make(chan Event, 256), // 缓冲通道，避免阻塞
	}
	select {
	case b.register <- client:
	case <-b.shutdown:
		close(client.Send)
	}
	return client
}

// UnregisterClient 注销客户端
func (b *BroadcastService) UnregisterClient(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.shutdown:
	}
}

// Close 关闭广播服务
func (b *BroadcastService) Close() {
	b.closeOnce.Do(func() { close(b.shutdown) })
}

func GetTimeStr() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
