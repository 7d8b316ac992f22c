package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BinaryBen1/virus-simulation/internal/observerproto"
)

func main() {
	var (
		url    = flag.String("url", "ws://127.0.0.1:8080/admin/v1/observer/ws", "observer ws url")
		every  = flag.Int("every", 60, "print one TICK per N ticks")
		agents = flag.Bool("agents", false, "request per-agent positions")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		IncludeAgents:   *agents,
		EveryTicks:      *every,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var tick observerproto.TickMsg
		if err := json.Unmarshal(msg, &tick); err != nil || tick.Type != "TICK" {
			continue
		}
		logger.Printf("%s", summarize(&tick))
	}
}
