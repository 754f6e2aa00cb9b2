package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireplan-server/internal/log"
	"github.com/vovakirdan/wireplan-server/internal/proto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	addr    string
	first   string
	second  string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "wireplan-smoke",
		Short:        "Play one estimation round against a running server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			if o.verbose {
				level = "debug"
			}
			logger := log.New(level)
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			if err := run(ctx, o, logger); err != nil {
				logger.Error().Err(err).Msg("smoke failed")
				return err
			}
			logger.Info().Msg("smoke passed")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&o.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	flags.StringVar(&o.first, "owner", "Alice", "display name of the room owner")
	flags.StringVar(&o.second, "guest", "Bob", "display name of the guest")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Second, "total timeout for the run")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log every frame")
	return cmd
}

// frame is an outbound envelope with its data left raw.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

type peer struct {
	name string
	conn *websocket.Conn
	log  zerolog.Logger
}

func dial(ctx context.Context, addr, name string, logger *zerolog.Logger) (*peer, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial as %s: %w", name, err)
	}
	return &peer{name: name, conn: conn, log: logger.With().Str("peer", name).Logger()}, nil
}

func (p *peer) send(ctx context.Context, typ string, data any) error {
	in := proto.Inbound{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		in.Data = raw
	}
	if err := wsjson.Write(ctx, p.conn, in); err != nil {
		return fmt.Errorf("%s send %s: %w", p.name, typ, err)
	}
	return nil
}

// await reads until the wanted event arrives. A protocol error aborts the wait.
func (p *peer) await(ctx context.Context, event string, into any) error {
	return p.awaitFrom(ctx, "", event, into)
}

// awaitReply is await restricted to answers to this peer's own commands.
func (p *peer) awaitReply(ctx context.Context, event string, into any) error {
	return p.awaitFrom(ctx, proto.OutboundTypeReply, event, into)
}

func (p *peer) awaitFrom(ctx context.Context, typ, event string, into any) error {
	for {
		var f frame
		if err := wsjson.Read(ctx, p.conn, &f); err != nil {
			return fmt.Errorf("%s waiting for %s: %w", p.name, event, err)
		}
		p.log.Debug().Str("type", f.Type).Str("event", f.Event).RawJSON("data", nonEmpty(f.Data)).Msg("frame")
		if f.Error != nil {
			return fmt.Errorf("%s got error %s: %s", p.name, f.Error.Code, f.Error.Msg)
		}
		if f.Event != event || (typ != "" && f.Type != typ) {
			continue
		}
		if into != nil {
			if err := json.Unmarshal(f.Data, into); err != nil {
				return fmt.Errorf("decode %s: %w", event, err)
			}
		}
		return nil
	}
}

func nonEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

func run(ctx context.Context, o options, logger *zerolog.Logger) error {
	owner, err := dial(ctx, o.addr, o.first, logger)
	if err != nil {
		return err
	}
	defer owner.conn.Close(websocket.StatusNormalClosure, "bye")
	guest, err := dial(ctx, o.addr, o.second, logger)
	if err != nil {
		return err
	}
	defer guest.conn.Close(websocket.StatusNormalClosure, "bye")

	for _, p := range []*peer{owner, guest} {
		if err := p.send(ctx, proto.InboundTypeLogin, proto.LoginData{DisplayName: p.name}); err != nil {
			return err
		}
		if err := p.await(ctx, "logged_in", nil); err != nil {
			return err
		}
	}

	if err := owner.send(ctx, proto.InboundTypeCreateRoom, nil); err != nil {
		return err
	}
	var created proto.RoomEventData
	if err := owner.await(ctx, "room_created", &created); err != nil {
		return err
	}
	if created.Room == nil {
		return fmt.Errorf("room_created without a room")
	}
	logger.Info().Str("room", created.Room.ID).Msg("room created")

	if err := guest.send(ctx, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: created.Room.ID}); err != nil {
		return err
	}
	if err := guest.await(ctx, "joined_room", nil); err != nil {
		return err
	}

	if err := owner.send(ctx, proto.InboundTypeStartEstimate, nil); err != nil {
		return err
	}
	if err := guest.await(ctx, "estimate_started", nil); err != nil {
		return err
	}

	cards := map[*peer]string{owner: "8", guest: "5"}
	for _, p := range []*peer{owner, guest} {
		if err := p.send(ctx, proto.InboundTypeSubmitEstimate, proto.SubmitEstimateData{Value: proto.EstimateValue(cards[p])}); err != nil {
			return err
		}
		if err := p.awaitReply(ctx, "estimate_submitted", nil); err != nil {
			return err
		}
	}

	if err := owner.send(ctx, proto.InboundTypeShowResult, nil); err != nil {
		return err
	}
	var result proto.ResultData
	if err := guest.await(ctx, "result_shown", &result); err != nil {
		return err
	}
	for _, e := range result.Estimates {
		logger.Info().Str("name", e.Name).Str("value", e.Value).Msg("estimate")
	}
	if len(result.Estimates) != 2 {
		return fmt.Errorf("expected 2 estimates, got %d", len(result.Estimates))
	}

	if err := owner.send(ctx, proto.InboundTypeStopEstimate, nil); err != nil {
		return err
	}
	return guest.await(ctx, "estimate_stopped", nil)
}
