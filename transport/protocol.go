package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/brensch/gravbot/game"
	"github.com/go-gl/mathgl/mgl64"
)

// ProtocolVersion is announced with "b <version>" right after connecting.
const ProtocolVersion = 9

// Server message types.
const (
	MsgOwnID       uint32 = 1
	MsgPlayerLeft  uint32 = 2
	MsgPlayerMoved uint32 = 3
	MsgShotDone    uint32 = 4
	MsgShotBegin   uint32 = 5
	MsgShotEnd     uint32 = 6
	MsgGameMode    uint32 = 7
	MsgEnergy      uint32 = 8
	MsgPlanets     uint32 = 9
)

var (
	// ErrProtocolVersion means the server speaks an older protocol.
	ErrProtocolVersion = errors.New("server uses an unsupported protocol version")
	ErrUnknownMessage  = errors.New("unknown message type")
)

var order = binary.LittleEndian

// Header precedes every server message.
type Header struct {
	Type    uint32
	Payload uint32
}

func readHeader(r io.Reader) (Header, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{Type: order.Uint32(buf[0:4]), Payload: order.Uint32(buf[4:8])}, nil
}

// readBody decodes the rest of a message whose header has been read.
func readBody(r io.Reader, h Header) (game.Event, error) {
	switch h.Type {
	case MsgOwnID:
		return game.Event{Kind: game.EventOwnID, PlayerID: int(h.Payload)}, nil

	case MsgPlayerLeft:
		return game.Event{Kind: game.EventPlayerLeft, PlayerID: int(h.Payload)}, nil

	case MsgPlayerMoved:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return game.Event{}, fmt.Errorf("read player position: %w", err)
		}
		x := math.Float32frombits(order.Uint32(buf[0:4]))
		y := math.Float32frombits(order.Uint32(buf[4:8]))
		return game.Event{Kind: game.EventPlayerMoved, PlayerID: int(h.Payload), Position: mgl64.Vec2{float64(x), float64(y)}}, nil

	case MsgShotDone, MsgGameMode:
		return game.Event{}, fmt.Errorf("%w: message type %d", ErrProtocolVersion, h.Type)

	case MsgShotBegin:
		if err := discard(r, 16); err != nil {
			return game.Event{}, fmt.Errorf("read shot begin: %w", err)
		}
		return game.Event{Kind: game.EventShotBegin}, nil

	case MsgShotEnd:
		var buf [20]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return game.Event{}, fmt.Errorf("read shot end: %w", err)
		}
		n := order.Uint32(buf[16:20])
		if err := discard(r, int64(n)*8); err != nil {
			return game.Event{}, fmt.Errorf("read shot trail: %w", err)
		}
		return game.Event{Kind: game.EventShotEnd}, nil

	case MsgEnergy:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return game.Event{}, fmt.Errorf("read energy: %w", err)
		}
		return game.Event{Kind: game.EventEnergy, Energy: math.Float64frombits(order.Uint64(buf[:]))}, nil

	case MsgPlanets:
		if h.Payload > game.MaxPlanets {
			return game.Event{}, fmt.Errorf("read planets: %w: %d", game.ErrTooManyPlanets, h.Payload)
		}
		// Byte count of the planet block, redundant with the payload.
		if err := discard(r, 4); err != nil {
			return game.Event{}, fmt.Errorf("read planets: %w", err)
		}
		planets := make([]game.Planet, h.Payload)
		var buf [32]byte
		for i := range planets {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return game.Event{}, fmt.Errorf("read planet %d: %w", i, err)
			}
			planets[i] = game.Planet{
				ID:       i,
				Position: mgl64.Vec2{f64(buf[0:8]), f64(buf[8:16])},
				Radius:   f64(buf[16:24]),
				Mass:     f64(buf[24:32]),
			}
		}
		return game.Event{Kind: game.EventPlanets, Planets: planets}, nil

	default:
		return game.Event{}, fmt.Errorf("%w: %d", ErrUnknownMessage, h.Type)
	}
}

func f64(b []byte) float64 {
	return math.Float64frombits(order.Uint64(b))
}

func discard(r io.Reader, n int64) error {
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

// Commands sent to the server are newline-terminated text lines.

func versionCommand(version int) string {
	return "b " + strconv.Itoa(version) + "\n"
}

func nameCommand(name string) string {
	name = strings.NewReplacer("\n", " ", "\r", " ").Replace(name)
	return "n " + name + "\n"
}

func fireCommand(velocity, degrees float64) string {
	return "c\nv " + formatFloat(velocity) + "\n" + formatFloat(degrees) + "\n"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
