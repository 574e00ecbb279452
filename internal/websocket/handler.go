package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = gorillaWS.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 编辑器与 API 可能部署在不同域名,来源由 CORS 配置和网关控制
		return true
	},
}

// ContainerExists 判断容器是否存在
type ContainerExists func(c *gin.Context, containerID string) bool

// WebSocketHandler 订阅某个容器的变更事件
// 路由参数 :id 为容器 ID
func WebSocketHandler(hub *Hub, exists ContainerExists) gin.HandlerFunc {
	return func(c *gin.Context) {
		containerID := c.Param("id")
		if containerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing container id"})
			return
		}
		if exists != nil && !exists(c, containerID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "container not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade 失败时已向客户端写入错误响应
			logrus.WithError(err).WithField("container_id", containerID).Warn("Failed to upgrade websocket connection")
			return
		}

		client := NewClient(uuid.New().String(), containerID, hub, conn)
		hub.Register <- client

		go client.ReadPump()
		go client.WritePump()
	}
}
