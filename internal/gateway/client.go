package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/fractalmind-ai/codeteam/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client represents a connected WebSocket client
type Client struct {
	ID        string
	Conn      *websocket.Conn
	Server    *Server
	log       logrus.FieldLogger
	ctx       context.Context
	cancel    context.CancelFunc
	sendLock  sync.Mutex
	closeOnce sync.Once
	closeChan chan struct{}
}

// NewClient creates a new client
func NewClient(id string, conn *websocket.Conn, server *Server) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:        id,
		Conn:      conn,
		Server:    server,
		log:       server.log.WithField("client", id),
		ctx:       ctx,
		cancel:    cancel,
		closeChan: make(chan struct{}),
	}
}

// Handle processes incoming messages from client
func (c *Client) Handle() {
	defer c.Close()

	for {
		var msg protocol.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		c.ProcessMessage(&msg)
	}
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			c.sendLock.Lock()
			err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.sendLock.Unlock()
			if err != nil {
				c.Close()
				return
			}
		}
	}
}

// ProcessMessage handles incoming message based on type
func (c *Client) ProcessMessage(msg *protocol.Message) {
	if msg == nil {
		return
	}

	switch msg.Kind {
	case protocol.MessageKindAgent:
		c.handleAgentMessage(msg)
	case protocol.MessageKindEvent:
		c.handleEventMessage(msg)
	case protocol.MessageKindTool:
		c.handleToolMessage(msg)
	default:
		c.sendError(msg, "unknown message kind: "+string(msg.Kind))
	}
}

func (c *Client) handleEventMessage(msg *protocol.Message) {
	switch msg.Action {
	case protocol.ActionEcho:
		c.reply(&protocol.Message{
			Kind:   protocol.MessageKindEvent,
			Action: protocol.ActionEcho,
			Data:   msg.Data,
		})
	default:
		c.sendError(msg, "unknown event action: "+string(msg.Action))
	}
}

func (c *Client) handleAgentMessage(msg *protocol.Message) {
	switch msg.Action {
	case protocol.ActionList:
		c.reply(&protocol.Message{
			Kind:   protocol.MessageKindAgent,
			Action: protocol.ActionList,
			Data:   c.Server.GetAgentManager().List(),
		})
	default:
		c.sendError(msg, "unknown agent action: "+string(msg.Action))
	}
}

func (c *Client) handleToolMessage(msg *protocol.Message) {
	switch msg.Action {
	case protocol.ActionList:
		c.reply(&protocol.Message{
			Kind:   protocol.MessageKindTool,
			Action: protocol.ActionList,
			Data:   c.Server.GetAgentManager().Tools(),
		})
	case protocol.ActionCall:
		var call protocol.ToolCall
		if err := msg.DecodeData(&call); err != nil {
			c.sendError(msg, err.Error())
			return
		}
		result := protocol.ToolResult{ID: call.ID, Name: call.Name}
		res, err := c.Server.GetAgentManager().ExecuteTool(c.ctx, call.Agent, call.Name, call.Arguments)
		if err != nil {
			result.Output = err.Error()
			result.IsError = true
		} else {
			result.Output = res.Text
			result.IsError = res.Failed
		}
		c.log.WithFields(logrus.Fields{
			"agent":    call.Agent,
			"tool":     call.Name,
			"is_error": result.IsError,
		}).Debug("tool call handled")
		c.reply(&protocol.Message{
			Kind:   protocol.MessageKindTool,
			Action: protocol.ActionResult,
			Data:   result,
		})
	default:
		c.sendError(msg, "unknown tool action: "+string(msg.Action))
	}
}

func (c *Client) sendError(msg *protocol.Message, text string) {
	c.reply(&protocol.Message{
		Kind:   msg.Kind,
		Action: msg.Action,
		Error:  text,
	})
}

func (c *Client) reply(msg *protocol.Message) {
	if err := c.Send(msg); err != nil {
		c.log.WithError(err).Warn("send failed")
	}
}

// Send sends a message to client
func (c *Client) Send(msg *protocol.Message) error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()

	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(msg)
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.cancel()
		_ = c.Conn.Close()
		c.Server.removeClient(c)
		c.log.Info("client disconnected")
	})
}
