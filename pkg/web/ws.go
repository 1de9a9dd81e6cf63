package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEndpoint 推送工作流日志和进度。?session= 只接收指定会话的事件。
func (s *Server) wsEndpoint(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer ws.Close()

	sessionFilter := c.Query("session")
	client := s.events.RegisterClient(ws)

	// 读循环只用于发现断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.events.UnregisterClient(client)
			return
		case event, ok := <-client.Send:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if sessionFilter != "" && event.Session != "" && event.Session != sessionFilter {
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(event); err != nil {
				s.logger.Debug("WebSocket 写入失败", zap.Error(err))
				s.events.UnregisterClient(client)
				return
			}
		}
	}
}
