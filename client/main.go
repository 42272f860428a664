package main

import (
	"bufio"
	"flag"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/utils"
)

// client 命令行调试客户端, 记住当前房间号和已发送的 ack
type client struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	ack      uint64
	roomCode string
	nickname string
}

func (c *client) send(event string, payload interface{}) error {
	c.mu.Lock()
	c.ack++
	env, err := network.NewEnvelope(event, c.ack, payload)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(env)
}

func (c *client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *client) setRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

func (c *client) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		var env network.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			log.Println("Read error:", err)
			return
		}
		switch env.Event {
		case network.EvtAck:
			var resp network.CreateRoomResponse
			if env.Decode(&resp) == nil && resp.RoomCode != "" {
				c.setRoom(resp.RoomCode)
			}
		case network.EvtRoomUpdate:
			var r struct {
				Code string `json:"code"`
			}
			if env.Decode(&r) == nil && r.Code != "" {
				c.setRoom(r.Code)
			}
		}
		log.Printf("<- %s (ack %d): %s", env.Event, env.Ack, string(env.Data))
	}
}

// handleLine turns one typed command into a protocol command.
func (c *client) handleLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	code := c.room()

	switch fields[0] {
	case "ping":
		return c.send(network.CmdPing, nil)
	case "create":
		if rest != "" {
			c.nickname = rest
		}
		return c.send(network.CmdCreateRoom, network.CreateRoomRequest{Nickname: c.nickname})
	case "join":
		if len(fields) < 2 {
			log.Println("usage: join <code> [nickname]")
			return nil
		}
		if len(fields) > 2 {
			c.nickname = strings.Join(fields[2:], " ")
		}
		return c.send(network.CmdJoinRoom, network.JoinRoomRequest{RoomCode: fields[1], Nickname: c.nickname})
	case "rejoin":
		return c.send(network.CmdRejoinRoom, network.RoomRequest{RoomCode: code})
	case "leave":
		return c.send(network.CmdLeaveRoom, network.RoomRequest{RoomCode: code})
	case "start":
		return c.send(network.CmdStartGame, network.RoomRequest{RoomCode: code})
	case "say":
		return c.send(network.CmdSubmitDescription, network.TextRequest{RoomCode: code, Text: rest})
	case "draft":
		return c.send(network.CmdSetDescriptionDraft, network.TextRequest{RoomCode: code, Text: rest})
	case "vote":
		target := rest
		if target == "abstain" {
			target = models.AbstainID
		}
		return c.send(network.CmdSubmitVote, network.VoteRequest{RoomCode: code, TargetID: target})
	case "chat":
		return c.send(network.CmdSendVoteMessage, network.TextRequest{RoomCode: code, Text: rest})
	case "ready":
		return c.send(network.CmdToggleReady, network.RoomRequest{RoomCode: code})
	case "restart":
		return c.send(network.CmdRestartGame, network.RoomRequest{RoomCode: code})
	default:
		log.Println("commands: ping, create [nick], join <code> [nick], rejoin, leave, start, say <text>, draft <text>, vote <id|abstain>, chat <text>, ready, restart")
	}
	return nil
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	token := flag.String("token", "", "identity token from a previous connected event")
	flag.Parse()
	log.SetFlags(log.Ltime)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	if *token != "" {
		u.RawQuery = url.Values{"token": {*token}}.Encode()
	}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	c := &client{
		conn:     conn,
		nickname: utils.GenerateNickname(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
	log.Printf("Playing as %s. Type 'help' for commands.", c.nickname)

	done := make(chan struct{})
	go c.readLoop(done)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.handleLine(line); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
