package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/brensch/gravbot/game"
	"github.com/go-gl/mathgl/mgl64"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollTimeout = time.Second
	cfg.ReadTimeout = time.Second
	cfg.WriteTimeout = time.Second
	cfg.HandshakeDrain = 20 * time.Millisecond
	cfg.DiscardWindow = 20 * time.Millisecond
	cfg.RetryInterval = 10 * time.Millisecond
	return cfg
}

type msg []byte

func header(typ, payload uint32) msg {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], typ)
	binary.LittleEndian.PutUint32(b[4:8], payload)
	return b
}

func (m msg) u32(v uint32) msg { return binary.LittleEndian.AppendUint32(m, v) }
func (m msg) f32(v float32) msg {
	return binary.LittleEndian.AppendUint32(m, math.Float32bits(v))
}
func (m msg) f64(v float64) msg {
	return binary.LittleEndian.AppendUint64(m, math.Float64bits(v))
}

func pipe(t *testing.T, cfg Config) (*Client, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewClient(client, cfg, nil), server
}

func serve(t *testing.T, conn net.Conn, msgs ...msg) {
	t.Helper()
	go func() {
		for _, m := range msgs {
			if _, err := conn.Write(m); err != nil {
				return
			}
		}
	}()
}

func mustNext(t *testing.T, c *Client) game.Event {
	t.Helper()
	ev, ok, err := c.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatalf("Next: no event")
	}
	return ev
}

func TestNextDecodesMessages(t *testing.T) {
	c, server := pipe(t, testConfig())
	serve(t, server,
		header(MsgOwnID, 3),
		header(MsgPlayerMoved, 5).f32(120.5).f32(640.25),
		header(MsgPlanets, 2).u32(64).
			f64(500).f64(400).f64(30).f64(1200).
			f64(1500).f64(800).f64(15).f64(300),
		header(MsgEnergy, 0).f64(87.9),
		header(MsgShotBegin, 0).f64(1).f64(2),
		header(MsgShotEnd, 0).f64(1).f64(2).u32(2).f32(1).f32(2).f32(3).f32(4),
		header(MsgPlayerLeft, 5),
	)

	if ev := mustNext(t, c); ev.Kind != game.EventOwnID || ev.PlayerID != 3 {
		t.Errorf("own id event = %+v", ev)
	}
	if ev := mustNext(t, c); ev.Kind != game.EventPlayerMoved || ev.PlayerID != 5 || ev.Position != (mgl64.Vec2{120.5, 640.25}) {
		t.Errorf("move event = %+v", ev)
	}

	ev := mustNext(t, c)
	if ev.Kind != game.EventPlanets || len(ev.Planets) != 2 {
		t.Fatalf("planets event = %+v", ev)
	}
	want := game.Planet{ID: 1, Position: mgl64.Vec2{1500, 800}, Radius: 15, Mass: 300}
	if ev.Planets[1] != want {
		t.Errorf("planet[1] = %+v, want %+v", ev.Planets[1], want)
	}

	if ev := mustNext(t, c); ev.Kind != game.EventEnergy || ev.Energy != 87.9 {
		t.Errorf("energy event = %+v", ev)
	}
	if ev := mustNext(t, c); ev.Kind != game.EventShotBegin {
		t.Errorf("shot begin event = %+v", ev)
	}
	if ev := mustNext(t, c); ev.Kind != game.EventShotEnd {
		t.Errorf("shot end event = %+v", ev)
	}
	if ev := mustNext(t, c); ev.Kind != game.EventPlayerLeft || ev.PlayerID != 5 {
		t.Errorf("leave event = %+v", ev)
	}
}

func TestNextIdle(t *testing.T) {
	cfg := testConfig()
	cfg.PollTimeout = 20 * time.Millisecond
	c, _ := pipe(t, cfg)

	ev, ok, err := c.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("idle Next = %+v, %v, %v; want no event", ev, ok, err)
	}
}

func TestPollReturnsBufferedWithoutWaiting(t *testing.T) {
	cfg := testConfig()
	cfg.PollTimeout = 2 * time.Second
	c, server := pipe(t, cfg)
	both := append(header(MsgOwnID, 3), header(MsgPlayerLeft, 5)...)
	serve(t, server, both)

	if ev := mustNext(t, c); ev.Kind != game.EventOwnID {
		t.Fatalf("first event = %+v", ev)
	}
	ev, ok, err := c.Poll(context.Background())
	if err != nil || !ok || ev.Kind != game.EventPlayerLeft || ev.PlayerID != 5 {
		t.Fatalf("Poll = %+v, %v, %v", ev, ok, err)
	}

	start := time.Now()
	if _, ok, err := c.Poll(context.Background()); ok || err != nil {
		t.Fatalf("idle Poll = %v, %v", ok, err)
	}
	if took := time.Since(start); took > cfg.PollTimeout/2 {
		t.Errorf("idle Poll took %v", took)
	}
}

func TestNextLegacyProtocol(t *testing.T) {
	for _, typ := range []uint32{MsgShotDone, MsgGameMode} {
		c, server := pipe(t, testConfig())
		serve(t, server, header(typ, 0))
		if _, _, err := c.Next(context.Background()); !errors.Is(err, ErrProtocolVersion) {
			t.Errorf("type %d: err = %v, want ErrProtocolVersion", typ, err)
		}
	}
}

func TestNextSkipsUnknownMessage(t *testing.T) {
	c, server := pipe(t, testConfig())
	serve(t, server, header(42, 7))

	_, ok, err := c.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("unknown message: ok=%v err=%v, want skipped", ok, err)
	}

	serve(t, server, header(MsgOwnID, 4))
	if ev := mustNext(t, c); ev.Kind != game.EventOwnID || ev.PlayerID != 4 {
		t.Errorf("event after skip = %+v", ev)
	}
}

func TestNextConnectionLost(t *testing.T) {
	c, server := pipe(t, testConfig())
	_ = server.Close()
	if _, _, err := c.Next(context.Background()); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("err = %v, want ErrConnectionLost", err)
	}
}

func TestCommands(t *testing.T) {
	c, server := pipe(t, testConfig())
	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(server)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	ctx := context.Background()
	if err := c.SetName(ctx, "Dusty\nBarrel"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if err := c.Fire(ctx, 11, -45.5); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	for _, want := range []string{"n Dusty Barrel", "c", "v 11", "-45.5"} {
		select {
		case got := <-lines:
			if got != want {
				t.Errorf("line = %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestDialHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("welcome\x00\x01"))
		line, _ := bufio.NewReader(conn).ReadString('\n')
		got <- line
	}()

	cfg := testConfig()
	cfg.Address = ln.Addr().String()
	c, err := Dial(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	select {
	case line := <-got:
		if line != "b 9\n" {
			t.Errorf("handshake line = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the version line")
	}
}

func TestDialGivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := testConfig()
	cfg.Address = addr
	cfg.RetryFor = 50 * time.Millisecond
	if _, err := Dial(context.Background(), cfg, nil); err == nil {
		t.Fatalf("Dial to a closed port succeeded")
	}
}
