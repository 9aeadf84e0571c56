// Command bot is a small planning client: it connects to the server,
// registers a robot, requests one plan and prints the result.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"fieldline.dev/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "robot name")
		radius  = flag.Float64("radius", 0.45, "robot radius (m)")
		mass    = flag.Float64("mass", 55, "robot mass (kg)")
		startX  = flag.Float64("sx", 0.5, "start x")
		startY  = flag.Float64("sy", 0.5, "start y")
		goalX   = flag.Float64("gx", 8, "goal x")
		goalY   = flag.Float64("gy", 4, "goal y")
		heading = flag.Float64("heading", 0, "start heading (rad)")
		avoid   = flag.Bool("avoid", false, "avoid committed trajectories")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(v any) {
		b, _ := json.Marshal(v)
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			logger.Fatalf("write: %v", err)
		}
	}

	send(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read welcome: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil {
		logger.Fatalf("parse welcome: %v", err)
	}
	logger.Printf("connected, field %.2fx%.2f", welcome.FieldParams.Width, welcome.FieldParams.Height)

	send(protocol.RegisterRobotMsg{
		Type: protocol.TypeRegisterRobot,
		Robot: protocol.RobotSpec{
			Name:            *name,
			Radius:          *radius,
			Mass:            *mass,
			MOI:             6.5,
			MaxVelocity:     4.5,
			MaxAcceleration: 6,
			MaxOmega:        8,
			MaxAlpha:        20,
		},
	})
	send(protocol.PlanRequestMsg{
		Type:      protocol.TypePlanRequest,
		RequestID: "bot-1",
		Robot:     *name,
		Start:     [2]float64{*startX, *startY},
		Goal:      [2]float64{*goalX, *goalY},
		Heading:   *heading,
		Avoid:     *avoid,
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			logger.Fatalf("server error %s: %s", e.Code, e.Message)
		case protocol.TypePlanResult:
			var res protocol.PlanResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				logger.Fatalf("parse result: %v", err)
			}
			if !res.OK {
				logger.Fatalf("plan failed %s: %s", res.Code, res.Message)
			}
			logger.Printf("plan ok: time=%.3fs length=%.3fm max_v=%.3fm/s samples=%d adjusted=%d",
				res.TravelTime, res.PathLength, res.MaxVelocity, len(res.Samples), len(res.Adjusted))
			return
		}
	}
}
