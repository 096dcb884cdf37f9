package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-x500cam/pkg/hub"
)

const indexHTML = `<!doctype html>
<html>
<head><title>x500 mono cam</title></head>
<body style="margin:0;background:#111">
<img id="cam" style="max-width:100%">
<script>
const img = document.getElementById("cam");
const ws = new WebSocket("ws://" + location.host + "/ws/camera");
ws.binaryType = "blob";
ws.onmessage = (e) => {
  const url = URL.createObjectURL(e.data);
  img.onload = () => URL.revokeObjectURL(url);
  img.src = url;
};
</script>
</body>
</html>`

// handleIndex serves a page that renders /ws/camera.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(indexHTML)
}

// handleStatus returns the current status snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "status not configured",
		})
	}
	return c.JSON(s.status())
}

// handleFrame returns the latest JPEG frame.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	s.lastPoll.Store(time.Now().UnixNano())

	frame, at := s.LatestFrame()
	if frame == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "no frame received yet",
		})
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderLastModified, at.UTC().Format(http.TimeFormat))
	c.Type("jpg")
	return c.Send(frame)
}

// handleCameraWS streams binary JPEG frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	s.serveHub(s.cameraHub, c)
}

// handleStatusWS streams JSON status.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if s.status != nil {
		c.WriteJSON(s.status())
	}
	s.serveHub(s.statusHub, c)
}

func (s *Server) serveHub(h *hub.Hub, c *websocket.Conn) {
	client, err := hub.NewClient(h, c)
	if err != nil {
		s.logger.Debug("rejecting websocket client", "error", err)
		c.Close()
		return
	}
	client.Run()
}
