package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fieldline.dev/internal/protocol"
	"fieldline.dev/internal/sim/corridor"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/pathfind"
	"fieldline.dev/internal/sim/physics"
	"fieldline.dev/internal/sim/trajopt"
	"fieldline.dev/internal/sim/tuning"
)

// ResultSink observes finished plans and robot registrations; used for
// persistence.
type ResultSink interface {
	PlanFinished(res protocol.PlanResultMsg)
	RobotRegistered(spec protocol.RobotSpec)
}

type Server struct {
	engine *physics.Engine
	tun    tuning.Tuning
	log    *log.Logger
	sink   ResultSink

	upgrader websocket.Upgrader
}

func NewServer(engine *physics.Engine, tun tuning.Tuning, logger *log.Logger) *Server {
	s := &Server{
		engine: engine,
		tun:    tun,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// SetSink wires the persistence sink. Must be called before Handler serves.
func (s *Server) SetSink(sink ResultSink) { s.sink = sink }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(300 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.sendError(out, protocol.ErrProtoBadRequest, "malformed message")
				continue
			}
			switch base.Type {
			case protocol.TypeRegisterRobot:
				s.handleRegister(out, msg)
			case protocol.TypeAddObstacle:
				s.handleObstacle(out, msg)
			case protocol.TypePlanRequest:
				var req protocol.PlanRequestMsg
				if err := json.Unmarshal(msg, &req); err != nil {
					s.sendError(out, protocol.ErrProtoBadRequest, "malformed PLAN_REQUEST")
					continue
				}
				// Solves can be slow; keep the reader responsive.
				go s.handlePlan(ctx, out, req)
			case protocol.TypeCommit:
				s.handleCommit(out, msg)
			case protocol.TypeClear:
				s.handleClear(out, msg)
			default:
				s.sendError(out, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (chan []byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, false
	}

	out := make(chan []byte, 16)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       fmt.Sprintf("s-%d", time.Now().UnixNano()),
		FieldParams: protocol.FieldParams{
			Width:  s.tun.FieldWidth,
			Height: s.tun.FieldHeight,
		},
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil, false
	}
	return out, true
}

func (s *Server) handleRegister(out chan []byte, msg []byte) {
	var m protocol.RegisterRobotMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		s.sendError(out, protocol.ErrProtoBadRequest, "malformed REGISTER_ROBOT")
		return
	}
	if m.Robot.Name == "" || m.Robot.Radius <= 0 || m.Robot.Mass <= 0 {
		s.sendError(out, protocol.ErrBadRequest, "robot needs name, radius and mass")
		return
	}
	params := trajopt.RobotParams{
		Radius:          m.Robot.Radius,
		Mass:            m.Robot.Mass,
		MOI:             m.Robot.MOI,
		MaxVelocity:     m.Robot.MaxVelocity,
		MaxAcceleration: m.Robot.MaxAcceleration,
		MaxOmega:        m.Robot.MaxOmega,
		MaxAlpha:        m.Robot.MaxAlpha,
	}
	if d := m.Robot.Drivetrain; d != nil && len(d.ModuleOffsets) == 4 {
		var sc trajopt.SwerveConfig
		for i, off := range d.ModuleOffsets {
			sc.Offsets[i] = geom.Vec{X: off[0], Y: off[1]}
		}
		sc.MotorTorque = d.MotorTorque
		sc.MotorFreeSpeed = d.MotorFreeSpeed
		sc.WheelRadius = d.WheelRadius
		sc.Friction = d.Friction
		params.Drivetrain = sc
	}
	s.engine.RegisterRobot(m.Robot.Name, params)
	if s.sink != nil {
		s.sink.RobotRegistered(m.Robot)
	}
	s.log.Printf("robot registered: %s", m.Robot.Name)
}

func (s *Server) handleObstacle(out chan []byte, msg []byte) {
	var m protocol.AddObstacleMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		s.sendError(out, protocol.ErrProtoBadRequest, "malformed ADD_OBSTACLE")
		return
	}
	obs, err := DecodeObstacle(m.Obstacle)
	if err != nil {
		s.sendError(out, protocol.ErrBadRequest, err.Error())
		return
	}
	s.engine.AddObstacle(obs)
}

func (s *Server) handlePlan(ctx context.Context, out chan []byte, req protocol.PlanRequestMsg) {
	res := protocol.PlanResultMsg{
		Type:      protocol.TypePlanResult,
		RequestID: req.RequestID,
		Robot:     req.Robot,
	}

	strategy := trajopt.MinimizeTime
	if req.Strategy == "distance" {
		strategy = trajopt.MinimizeDistance
	}
	traj, err := s.engine.GenerateTrajectory(physics.PlanRequest{
		Robot:       req.Robot,
		Start:       geom.Vec{X: req.Start[0], Y: req.Start[1]},
		Goal:        geom.Vec{X: req.Goal[0], Y: req.Goal[1]},
		Heading:     req.Heading,
		GoalHeading: req.GoalHeading,
		StartTime:   req.StartTime,
		Avoid:       req.Avoid,
		Strategy:    strategy,
	})
	if err != nil {
		res.OK = false
		res.Code = codeFor(err)
		res.Message = err.Error()
	} else {
		res.OK = true
		res.TravelTime = traj.TravelTime()
		res.PathLength = traj.Length()
		res.MaxVelocity = traj.MaxVelocity()
		res.Samples = encodeSamples(traj)
		for _, iv := range traj.AvoidanceIntervals() {
			res.Adjusted = append(res.Adjusted, protocol.Interval{From: iv.From, To: iv.To})
		}
	}

	if s.sink != nil {
		s.sink.PlanFinished(res)
	}
	b, _ := json.Marshal(res)
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handleCommit(out chan []byte, msg []byte) {
	var m protocol.CommitMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		s.sendError(out, protocol.ErrProtoBadRequest, "malformed COMMIT")
		return
	}
	traj, ok, err := s.engine.LatestTrajectory(m.Robot)
	if err != nil {
		s.sendError(out, protocol.ErrUnknownRobot, err.Error())
		return
	}
	if !ok {
		s.sendError(out, protocol.ErrBadRequest, "robot has no trajectory to commit")
		return
	}
	_ = s.engine.Commit(m.Robot, traj, m.StartTime)
}

func (s *Server) handleClear(out chan []byte, msg []byte) {
	var m protocol.ClearMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		s.sendError(out, protocol.ErrProtoBadRequest, "malformed CLEAR")
		return
	}
	if m.Robot == "" {
		s.engine.Registry.ClearAll()
		return
	}
	s.engine.Registry.Clear(m.Robot)
}

func (s *Server) sendError(out chan []byte, code, message string) {
	b, _ := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	select {
	case out <- b:
	default:
		s.log.Printf("ws: dropping error %s, slow client", code)
	}
}

// codeFor maps planning failures onto wire error codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, physics.ErrUnknownRobot):
		return protocol.ErrUnknownRobot
	case errors.Is(err, pathfind.ErrNoPath):
		return protocol.ErrNoPath
	case errors.Is(err, corridor.ErrSeedUnresolved):
		return protocol.ErrSeedUnresolved
	case errors.Is(err, trajopt.ErrInfeasible):
		return protocol.ErrSolverInfeasible
	case errors.Is(err, trajopt.ErrTimeout):
		return protocol.ErrSolverTimeout
	case errors.Is(err, trajopt.ErrUnsupportedObjective):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func encodeSamples(traj *trajopt.Trajectory) []protocol.SampleSpec {
	states := traj.States()
	out := make([]protocol.SampleSpec, len(states))
	ts := 0.0
	for i, st := range states {
		out[i] = protocol.SampleSpec{
			X: st.X, Y: st.Y, Heading: st.Heading,
			VX: st.VX, VY: st.VY, Omega: st.Omega,
			Timestamp: ts,
		}
		ts += st.DT
	}
	return out
}
