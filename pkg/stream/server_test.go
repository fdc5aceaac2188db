package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
	"github.com/ardalan-sia/trafficsim/pkg/simulation"
)

func snapshotAt(tick int) simulation.Snapshot {
	return simulation.Snapshot{
		Time: float64(tick),
		Tick: tick,
		Roads: []simulation.RoadView{
			{ID: 3, From: geom.Pt(0, 0), To: geom.Pt(10, 0), Capacity: 4, Flow: 2, Queue: []int{7}},
		},
		Vehicles: []simulation.VehicleView{{ID: 7, Road: 3, Location: geom.Pt(9, 0), Queued: true}},
	}
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)
	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, body
}

func TestSnapshotEndpoint(t *testing.T) {
	hub, srv := newTestServer(t)

	if code, _ := get(t, srv.URL+"/healthz"); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	if code, _ := get(t, srv.URL+"/snapshot"); code != http.StatusServiceUnavailable {
		t.Fatalf("snapshot before publish = %d", code)
	}

	hub.Publish(snapshotAt(4))

	code, body := get(t, srv.URL+"/snapshot")
	if code != http.StatusOK {
		t.Fatalf("snapshot = %d: %s", code, body)
	}
	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		t.Fatal(err)
	}
	if f.ID == "" || f.Snapshot.Tick != 4 || f.Snapshot.Roads[0].Flow != 2 {
		t.Fatalf("frame = %+v", f)
	}

	code, body = get(t, srv.URL+"/snapshot?format=msgpack")
	if code != http.StatusOK {
		t.Fatalf("msgpack snapshot = %d", code)
	}
	var mf Frame
	if err := msgpack.Unmarshal(body, &mf); err != nil {
		t.Fatal(err)
	}
	if mf.ID != f.ID || !mf.Snapshot.Vehicles[0].Queued || mf.Snapshot.Vehicles[0].Location != geom.Pt(9, 0) {
		t.Fatalf("msgpack frame = %+v", mf)
	}

	if code, _ := get(t, srv.URL+"/snapshot?format=xml"); code != http.StatusBadRequest {
		t.Fatalf("unknown format = %d", code)
	}
}

func TestWebsocketPush(t *testing.T) {
	hub, srv := newTestServer(t)
	hub.Publish(snapshotAt(1))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?format=msgpack"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() Frame {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("message kind = %d", kind)
		}
		var f Frame
		if err := msgpack.Unmarshal(data, &f); err != nil {
			t.Fatal(err)
		}
		return f
	}

	if f := read(); f.Snapshot.Tick != 1 {
		t.Fatalf("first frame tick = %d, want the latest on connect", f.Snapshot.Tick)
	}
	hub.Publish(snapshotAt(2))
	// the first frame may also arrive through the broadcast queue
	for {
		f := read()
		if f.Snapshot.Tick == 2 {
			break
		}
		if f.Snapshot.Tick != 1 {
			t.Fatalf("unexpected frame tick %d", f.Snapshot.Tick)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil)
	c := &client{id: "slow", format: JSON, send: make(chan message)}
	hub.clients[c] = true
	hub.deliver(c, &Frame{ID: "f", Snapshot: snapshotAt(1)}, map[Format]message{})
	if hub.clients[c] {
		t.Fatal("client with a full queue kept")
	}
	if _, open := <-c.send; open {
		t.Fatal("send channel left open")
	}
}
