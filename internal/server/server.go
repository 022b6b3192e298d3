// Package server exposes the display over a websocket control socket.
// Clients send JSON-RPC style envelopes; the only state-changing command is
// display.update, which feeds straight into the display's update queue.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Eeems/waved/internal/display"
	"github.com/Eeems/waved/internal/waveform"
)

// Panel is the slice of the display the server drives.
type Panel interface {
	PushUpdateKind(kind waveform.ModeKind, immediate bool, region display.UpdateRegion, buffer []waveform.Intensity) bool
}

type Server struct {
	panel    Panel
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func New(panel Panel, logger zerolog.Logger) *Server {
	return &Server{panel: panel, logger: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("control connection closed")
			}
			return
		}
		if env.Method != "invoke" {
			continue
		}

		var params InvokeParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			s.respondError(conn, env.ID, codeInvalidParams, err.Error())
			continue
		}

		result, rpcErr := s.dispatch(params)
		if rpcErr != nil {
			s.respondError(conn, env.ID, rpcErr.Code, rpcErr.Message)
			continue
		}
		s.respond(conn, env.ID, result)
	}
}

func (s *Server) dispatch(params InvokeParams) (interface{}, *RPCError) {
	switch params.Command {
	case "display.info":
		// Reported in the portrait frame callers address.
		return InfoResult{
			Width:           display.EPDHeight,
			Height:          display.EPDWidth,
			IntensityValues: waveform.IntensityValues,
		}, nil

	case "display.update":
		var args UpdateArgs
		if err := json.Unmarshal(params.Args, &args); err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
		kind, err := waveform.ParseModeKind(args.Mode)
		if err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
		region := display.UpdateRegion{
			Top:    args.Region.Top,
			Left:   args.Region.Left,
			Width:  args.Region.Width,
			Height: args.Region.Height,
		}
		accepted := s.panel.PushUpdateKind(kind, args.Immediate, region, args.Pixels)
		return UpdateResult{Accepted: accepted}, nil
	}

	return nil, &RPCError{
		Code:    codeUnknownCommand,
		Message: fmt.Sprintf("unknown command %q", params.Command),
	}
}

func (s *Server) respond(conn *websocket.Conn, id *json.RawMessage, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.respondError(conn, id, codeInvalidParams, err.Error())
		return
	}
	if err := conn.WriteJSON(Envelope{ID: id, Result: raw}); err != nil {
		s.logger.Warn().Err(err).Msg("control write failed")
	}
}

func (s *Server) respondError(conn *websocket.Conn, id *json.RawMessage, code int, message string) {
	if err := conn.WriteJSON(Envelope{ID: id, Error: &RPCError{Code: code, Message: message}}); err != nil {
		s.logger.Warn().Err(err).Msg("control write failed")
	}
}
