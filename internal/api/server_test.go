package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/xtding233/payout-engine/internal/game"
	"github.com/xtding233/payout-engine/internal/payout"
	"github.com/xtding233/payout-engine/internal/quant"
)

type fakeEngines struct {
	entry  *game.Entry
	err    error
	builds []game.Overrides
}

func (f *fakeEngines) Engine(g, mode string) (*game.Entry, error) {
	if g != "demo" {
		return nil, fmt.Errorf("%w: %s", game.ErrUnknownGame, g)
	}
	return f.entry, f.err
}

func (f *fakeEngines) Build(g, mode string, o game.Overrides) (*game.Entry, error) {
	f.builds = append(f.builds, o)
	return f.Engine(g, mode)
}

func (f *fakeEngines) Keys() []string { return []string{"demo"} }

func demoEntry(t *testing.T) *game.Entry {
	t.Helper()
	tb, err := payout.NewTable([]payout.Tier{
		{Name: "a", Min: 0, Max: 1, Weight: 600000},
		{Name: "b", Min: 1, Max: 3, Weight: 300000},
		{Name: "c", Min: 3, Max: 10, Weight: 100000},
	})
	if err != nil {
		t.Fatal(err)
	}
	q := payout.Quotas{Loss: 0.5, Base: 0.5}
	cal, err := payout.Retarget(tb, payout.RetargetOptions{Quotas: q, Wincap: 100, Target: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	qz, _ := quant.NewQuantizer(0.1)
	fin, _ := payout.NewFinisher(100, qz, 1, 100)
	eng, err := payout.NewEngine(cal, q, fin)
	if err != nil {
		t.Fatal(err)
	}
	return &game.Entry{
		Engine: eng,
		Params: game.EngineParams{Game: "demo", Quotas: q, Target: 0.9, Wincap: 100, Seed: 42, Version: "1"},
		Report: payout.NewReport(cal, q, 100, 0),
	}
}

func newTestServer(t *testing.T, f *fakeEngines) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(f, nil, Limits{MaxSpins: 100000}).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, status int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, status)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
}

func postJSON(t *testing.T, url, body string, status int, v any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Fatalf("POST %s: status %d, want %d", url, resp.StatusCode, status)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeEngines{entry: demoEntry(t)})
	var body struct {
		Status  string   `json:"status"`
		Engines []string `json:"engines"`
	}
	getJSON(t, srv.URL+"/health", http.StatusOK, &body)
	if body.Status != "ok" || len(body.Engines) != 1 {
		t.Fatalf("body=%+v", body)
	}
}

func TestCalibration(t *testing.T) {
	srv := newTestServer(t, &fakeEngines{entry: demoEntry(t)})
	var body calibrationResponse
	getJSON(t, srv.URL+"/games/demo/calibration", http.StatusOK, &body)
	if body.Game != "demo" || body.Report.Target != 0.9 || !body.Report.Within || len(body.Report.Tiers) != 3 {
		t.Fatalf("body=%+v", body)
	}

	resp, err := http.Get(srv.URL + "/games/demo/calibration?format=text")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "status converged") {
		t.Fatalf("text report=%s", text)
	}
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t, &fakeEngines{entry: demoEntry(t)})
	var body errorBody
	getJSON(t, srv.URL+"/games/nope/calibration", http.StatusNotFound, &body)
	if body.Type != ErrTypeNotFound || body.RequestID == "" {
		t.Fatalf("body=%+v", body)
	}

	rejected := &fakeEngines{err: fmt.Errorf("demo: %w", game.ErrCalibrationRejected)}
	srv = newTestServer(t, rejected)
	getJSON(t, srv.URL+"/games/demo/spin", http.StatusUnprocessableEntity, &body)
	if body.Type != ErrTypeRejected {
		t.Fatalf("body=%+v", body)
	}
}

func TestSpin(t *testing.T) {
	srv := newTestServer(t, &fakeEngines{entry: demoEntry(t)})
	var a, b spinResponse
	getJSON(t, srv.URL+"/games/demo/spin?seed=42&sim=3", http.StatusOK, &a)
	getJSON(t, srv.URL+"/games/demo/spin?seed=42&sim=3", http.StatusOK, &b)
	if a.RNG != payout.RNGVersion || a.Seed == nil || *a.Sim != 3 {
		t.Fatalf("spin=%+v", a)
	}
	if a.Outcome.Kind != b.Outcome.Kind || a.Outcome.TotalWinMinor != b.Outcome.TotalWinMinor {
		t.Fatalf("seeded spins differ: %+v vs %+v", a.Outcome, b.Outcome)
	}

	var loss spinResponse
	getJSON(t, srv.URL+"/games/demo/spin?branch=loss", http.StatusOK, &loss)
	if loss.Outcome.Kind != payout.KindLoss || loss.Outcome.IsWin {
		t.Fatalf("loss=%+v", loss.Outcome)
	}
	var capped spinResponse
	getJSON(t, srv.URL+"/games/demo/spin?branch=wincap&seed=1", http.StatusOK, &capped)
	if capped.Outcome.Kind != payout.KindWincap || capped.Outcome.TotalWinMinor != 10000 {
		t.Fatalf("wincap=%+v", capped.Outcome)
	}

	getJSON(t, srv.URL+"/games/demo/spin?seed=-1", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/games/demo/spin?branch=jackpot", http.StatusBadRequest, nil)
}

func TestSimulate(t *testing.T) {
	f := &fakeEngines{entry: demoEntry(t)}
	srv := newTestServer(t, f)
	var a, b simulateResponse
	postJSON(t, srv.URL+"/games/demo/simulate", `{"spins": 20000, "seed": 7, "rtp": 0.9}`, http.StatusOK, &a)
	postJSON(t, srv.URL+"/games/demo/simulate", `{"spins": 20000, "seed": 7, "workers": 3}`, http.StatusOK, &b)
	if _, err := uuid.Parse(a.RunID); err != nil || a.RunID == b.RunID {
		t.Fatalf("run ids %q %q", a.RunID, b.RunID)
	}
	if a.Stats.Spins != 20000 || a.Stats.Seed != 7 || a.Stats.RTP != b.Stats.RTP {
		t.Fatalf("stats a=%+v b=%+v", a.Stats, b.Stats)
	}
	if len(f.builds) != 2 || f.builds[0].RTP == nil || *f.builds[0].RTP != 0.9 {
		t.Fatalf("overrides not forwarded: %+v", f.builds)
	}

	var def simulateResponse
	postJSON(t, srv.URL+"/games/demo/simulate", `{"spins": 100}`, http.StatusOK, &def)
	if def.Stats.Seed != 42 {
		t.Fatalf("default seed=%d", def.Stats.Seed)
	}

	var body errorBody
	postJSON(t, srv.URL+"/games/demo/simulate", `{"spins": 0}`, http.StatusBadRequest, &body)
	if body.Type != ErrTypeValidation {
		t.Fatalf("body=%+v", body)
	}
	postJSON(t, srv.URL+"/games/demo/simulate", `{"spins": 1000000}`, http.StatusBadRequest, nil)
	postJSON(t, srv.URL+"/games/demo/simulate", `{"spins": 10, "extra": 1}`, http.StatusBadRequest, nil)
}
