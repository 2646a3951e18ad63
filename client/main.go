package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/werewolfroom/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// command 把一行输入转换为消息，返回 false 表示无法识别
func command(line string) (uint16, interface{}, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch fields[0] {
	case "start":
		return network.MsgTypeStartGame, nil, true
	case "act":
		return network.MsgTypeNightAction, network.NightActionRequest{Kind: arg(1), TargetID: arg(2)}, true
	case "vote":
		return network.MsgTypeVote, network.TargetRequest{TargetID: arg(1)}, true
	case "shoot":
		return network.MsgTypeHunterShoot, network.TargetRequest{TargetID: arg(1)}, true
	case "badge":
		return network.MsgTypeBadgeTransfer, network.TargetRequest{TargetID: arg(1)}, true
	case "done":
		return network.MsgTypeSpeechEnd, nil, true
	case "pause":
		return network.MsgTypeHostPause, nil, true
	case "resume":
		return network.MsgTypeHostResume, nil, true
	case "skip":
		return network.MsgTypeHostForceSkip, nil, true
	case "restore":
		return network.MsgTypeDebugRestore, network.DebugRestoreRequest{SpeakerID: arg(1)}, true
	}
	return 0, nil, false
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	roomID := flag.String("room", "room-1", "room to join")
	playerID := flag.String("player", "p1", "player id")
	name := flag.String("name", "", "display name")
	position := flag.Int("position", 1, "seat position")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	join := network.JoinRequest{RoomID: *roomID, PlayerID: *playerID, Name: *name, Position: *position}
	if err := send(c, network.MsgTypeJoinRoom, join); err != nil {
		log.Println("Write error:", err)
		return
	}

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println("Commands: start | act <kind> [target] | vote [target] | shoot <target> | badge [target] | done | pause | resume | skip | restore [speaker]")

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			msgID, payload, known := command(line)
			if !known {
				log.Printf("Unknown command %q", line)
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT (ID: %d)", msgID)
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
