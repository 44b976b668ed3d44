package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/models"
	"github.com/lehigh-university-libraries/sketchguess/internal/providers"
)

type stubProvider struct {
	reply   string
	started chan struct{}
	release chan struct{}
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) DescribeImage(ctx context.Context, config providers.Config, image []byte) (string, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.reply, nil
}

func newTestServer(t *testing.T, opts Options) (*Handler, *httptest.Server) {
	t.Helper()
	h := New(opts)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/boards", h.HandleBoards)
	mux.HandleFunc("/api/boards/", h.HandleBoardDetail)
	mux.HandleFunc("/", h.HandleStatic)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return h, srv
}

func createBoard(t *testing.T, srv *httptest.Server) models.BoardView {
	t.Helper()
	res, err := http.Post(srv.URL+"/api/boards", "application/json", strings.NewReader(`{"width":100,"height":50}`))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create board status = %d", res.StatusCode)
	}
	var view models.BoardView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	return view
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestPointerFlowCreatesStroke(t *testing.T) {
	h, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)

	events := `[{"type":"down","x":10,"y":10},{"type":"move","x":20,"y":20},{"type":"move","x":30,"y":25},{"type":"up"}]`
	res := do(t, "POST", srv.URL+"/api/boards/"+view.ID+"/pointer", events)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pointer status = %d", res.StatusCode)
	}

	board, _ := h.boardStore.Get(view.ID)
	strokes := board.Canvas.Strokes()
	if len(strokes) != 1 || len(strokes[0].Points) != 3 {
		t.Fatalf("unexpected strokes %+v", strokes)
	}
	if board.Canvas.Drawing() {
		t.Error("stroke should be finished")
	}
}

func TestPointerRejectsUnknownEvent(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	res := do(t, "POST", srv.URL+"/api/boards/"+view.ID+"/pointer", `{"type":"hover"}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestSettings(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	url := srv.URL + "/api/boards/" + view.ID + "/settings"

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "valid", body: `{"tool":"eraser","size":99,"color":"#ABC"}`, want: http.StatusOK},
		{name: "bad tool", body: `{"tool":"spray"}`, want: http.StatusBadRequest},
		{name: "bad color", body: `{"color":"blue"}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(t, "PUT", url, tt.body)
			if res.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.want)
			}
		})
	}

	res := do(t, "GET", srv.URL+"/api/boards/"+view.ID, "")
	var got models.BoardView
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Canvas.Tool != "eraser" || got.Canvas.Size != 50 || got.Canvas.Color != "#aabbcc" {
		t.Errorf("settings not applied: %+v", got.Canvas)
	}
}

func TestExportPNG(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	do(t, "POST", srv.URL+"/api/boards/"+view.ID+"/pointer", `[{"type":"down","x":10,"y":10},{"type":"move","x":90,"y":40},{"type":"up"}]`)

	res := do(t, "GET", srv.URL+"/api/boards/"+view.ID+"/export.png?scale=2&background=%23ffffff", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	img, err := png.Decode(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("bounds = %v, want 200x100", img.Bounds())
	}

	bad := do(t, "GET", srv.URL+"/api/boards/"+view.ID+"/export.png?background=tomato", "")
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad background status = %d, want 400", bad.StatusCode)
	}
}

func TestExportPDF(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	res := do(t, "GET", srv.URL+"/api/boards/"+view.ID+"/export.pdf", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(res.Body) //nolint:errcheck
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("response is not a pdf")
	}
}

func TestStrokesRoundTripYAML(t *testing.T) {
	h, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	doc := "width: 64\nheight: 32\nstrokes:\n  - tool: pen\n    size: 3\n    color: \"#ff0000\"\n    points: [{x: 1, y: 1}, {x: 5, y: 5}]\n"

	res := do(t, "PUT", srv.URL+"/api/boards/"+view.ID+"/strokes?format=yaml", doc)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	board, _ := h.boardStore.Get(view.ID)
	if board.Canvas.Len() != 1 {
		t.Fatalf("expected 1 stroke, got %d", board.Canvas.Len())
	}

	res = do(t, "GET", srv.URL+"/api/boards/"+view.ID+"/strokes", "")
	var got struct {
		Width   int `json:"width"`
		Strokes []struct {
			Color string `json:"color"`
		} `json:"strokes"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Width != 64 || len(got.Strokes) != 1 || got.Strokes[0].Color != "#ff0000" {
		t.Errorf("unexpected document %+v", got)
	}
}

func TestAnalyzeWithoutAnalyzer(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	res := do(t, "POST", srv.URL+"/api/boards/"+view.ID+"/analyze", "")
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", res.StatusCode)
	}
}

func TestAnalyzeRejectsConcurrentRequests(t *testing.T) {
	stub := &stubProvider{reply: "いぬ", started: make(chan struct{}, 1), release: make(chan struct{})}
	_, srv := newTestServer(t, Options{Analyzer: analysis.New(stub, "stub-model")})
	view := createBoard(t, srv)
	url := srv.URL + "/api/boards/" + view.ID + "/analyze"

	type reply struct {
		status int
		body   models.AnalysisResponse
		err    error
	}
	first := make(chan reply, 1)
	go func() {
		res, err := http.Post(url, "application/json", nil)
		if err != nil {
			first <- reply{err: err}
			return
		}
		defer res.Body.Close()
		var body models.AnalysisResponse
		err = json.NewDecoder(res.Body).Decode(&body)
		first <- reply{status: res.StatusCode, body: body, err: err}
	}()

	select {
	case <-stub.started:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis never reached the provider")
	}

	res := do(t, "POST", url, "")
	if res.StatusCode != http.StatusConflict {
		t.Errorf("second analyze status = %d, want 409", res.StatusCode)
	}

	close(stub.release)
	got := <-first
	if got.err != nil {
		t.Fatal(got.err)
	}
	if got.status != http.StatusOK {
		t.Fatalf("first analyze status = %d", got.status)
	}
	if got.body.Result.Text != "いぬ" || !got.body.Result.Visible || got.body.Result.Analyzing {
		t.Errorf("unexpected result %+v", got.body.Result)
	}

	dismissed := do(t, "DELETE", srv.URL+"/api/boards/"+view.ID+"/analysis", "")
	var result analysis.Result
	if err := json.NewDecoder(dismissed.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Visible || result.Text != "いぬ" {
		t.Errorf("dismissed result = %+v", result)
	}
}

func TestNotFound(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	tests := []string{
		"/api/boards/missing",
		"/api/boards/" + view.ID + "/nope",
		"/nope.html",
	}
	for _, path := range tests {
		res := do(t, "GET", srv.URL+path, "")
		if res.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, res.StatusCode)
		}
	}
}

func TestIndexServed(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	res := do(t, "GET", srv.URL+"/", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(res.Body) //nolint:errcheck
	if !strings.Contains(buf.String(), `<canvas id="board">`) {
		t.Error("index page missing canvas")
	}
}

func TestDeleteBoard(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	if res := do(t, "DELETE", srv.URL+"/api/boards/"+view.ID, ""); res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", res.StatusCode)
	}
	if res := do(t, "GET", srv.URL+"/api/boards/"+view.ID, ""); res.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", res.StatusCode)
	}
}

func TestStreamAppliesPointerEvents(t *testing.T) {
	h, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/boards/" + view.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var hello models.StreamMessage
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != "changed" || hello.Analysis == nil {
		t.Fatalf("unexpected greeting %+v", hello)
	}

	for _, msg := range []models.StreamMessage{
		{Type: "down", X: 5, Y: 5},
		{Type: "move", X: 15, Y: 10},
		{Type: "up"},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	for {
		var msg models.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("stream ended before stroke finished: %v", err)
		}
		if msg.Type == "changed" && msg.Strokes == 1 && !msg.Drawing {
			break
		}
	}

	board, _ := h.boardStore.Get(view.ID)
	if pts := board.Canvas.Strokes()[0].Points; len(pts) != 2 {
		t.Errorf("stroke has %d points, want 2", len(pts))
	}

	if err := conn.WriteJSON(models.StreamMessage{Type: "wiggle"}); err != nil {
		t.Fatal(err)
	}
	for {
		var msg models.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("expected error message: %v", err)
		}
		if msg.Type == "error" {
			break
		}
	}
}

func TestPointerBatchWithUnknownEventAppliesNothing(t *testing.T) {
	h, srv := newTestServer(t, Options{})
	view := createBoard(t, srv)
	body := `[{"type":"down","x":1,"y":1},{"type":"move","x":5,"y":5},{"type":"hover"},{"type":"up"}]`
	res := do(t, "POST", srv.URL+"/api/boards/"+view.ID+"/pointer", body)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
	board, _ := h.boardStore.Get(view.ID)
	if n := board.Canvas.Len(); n != 0 {
		t.Errorf("rejected batch left %d strokes on the canvas", n)
	}
	if board.Canvas.Drawing() {
		t.Error("rejected batch left a stroke in progress")
	}
}

func TestStreamClientAbandonsOnlyItsOwnStroke(t *testing.T) {
	tests := []struct {
		name        string
		run         func(a, b *streamClient)
		wantDrawing bool
	}{
		{
			name: "other client disconnects",
			run: func(a, b *streamClient) {
				a.apply(models.StreamMessage{Type: "down", X: 1, Y: 1}) //nolint:errcheck
				b.apply(models.StreamMessage{Type: "down", X: 9, Y: 9}) //nolint:errcheck
				b.abandon()
			},
			wantDrawing: true,
		},
		{
			name: "owner disconnects mid-stroke",
			run: func(a, b *streamClient) {
				a.apply(models.StreamMessage{Type: "down", X: 1, Y: 1}) //nolint:errcheck
				a.apply(models.StreamMessage{Type: "move", X: 2, Y: 2}) //nolint:errcheck
				a.abandon()
			},
			wantDrawing: false,
		},
		{
			name: "stale stroke after another client begins",
			run: func(a, b *streamClient) {
				a.apply(models.StreamMessage{Type: "down", X: 1, Y: 1}) //nolint:errcheck
				b.apply(models.StreamMessage{Type: "up"})               //nolint:errcheck
				b.apply(models.StreamMessage{Type: "down", X: 5, Y: 5}) //nolint:errcheck
				a.abandon()
			},
			wantDrawing: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := models.NewBoard("b", 100, 50)
			a := &streamClient{board: board}
			b := &streamClient{board: board}
			tt.run(a, b)
			if got := board.Canvas.Drawing(); got != tt.wantDrawing {
				t.Errorf("drawing = %v, want %v", got, tt.wantDrawing)
			}
		})
	}
}
