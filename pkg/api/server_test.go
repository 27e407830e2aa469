package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/james-see/earquiz/internal/database"
	"github.com/james-see/earquiz/pkg/drill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() drill.Config {
	return drill.Config{
		Bands:           []drill.Band{100, 1000, 10000},
		BoostCut:        drill.BoostOnly,
		Order:           drill.OrderAsc,
		Priority:        drill.PriorityEachBand,
		DisableAdjacent: 1,
	}
}

func newTestServer(t *testing.T) (*Server, *gin.Engine, *database.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := database.NewMemoryStore()
	s := NewServer(testDefaults(), store, WithSeed(7))
	return s, s.Router(), store
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createSession(t *testing.T, r http.Handler, req SessionRequest) SessionResponse {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/sessions", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SessionResponse](t, w)
}

func TestHealthCheck(t *testing.T) {
	_, r, _ := newTestServer(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		body := decode[map[string]string](t, w)
		assert.Equal(t, "healthy", body["status"])
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := do(t, r, http.MethodOptions, "/api/v1/sequence", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListBands(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/v1/bands", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Presets map[string][]float64 `json:"presets"`
		Default string               `json:"default"`
	}](t, w)
	assert.Equal(t, drill.PresetOctave10, body.Default)
	assert.Len(t, body.Presets[drill.PresetOctave10], 10)
	assert.Len(t, body.Presets[drill.PresetThird31], 31)
}

type sequenceBody struct {
	Config   ConfigResponse  `json:"config"`
	Source   []float64       `json:"source"`
	Sequence []DrillResponse `json:"sequence"`
}

func labels(ds []DrillResponse) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Label
	}
	return out
}

func TestSequence(t *testing.T) {
	_, r, _ := newTestServer(t)

	tests := []struct {
		name string
		req  SequenceRequest
		want []string
	}{
		{"defaults", SequenceRequest{}, []string{"+100", "+1k", "+10k"}},
		{"start", SequenceRequest{Start: "1k"}, []string{"+1k", "+10k", "+100"}},
		{
			"boost and cut from a cut",
			SequenceRequest{ConfigRequest: ConfigRequest{BoostCut: "+-"}, Start: "-1k"},
			[]string{"-1k", "+1k", "-10k", "+10k", "-100", "+100"},
		},
		{
			"all boosts then all cuts",
			SequenceRequest{ConfigRequest: ConfigRequest{BoostCut: "+-", Priority: intPtr(2)}},
			[]string{"+100", "+1k", "+10k", "-100", "-1k", "-10k"},
		},
		{
			"descending",
			SequenceRequest{ConfigRequest: ConfigRequest{Bands: []string{"1k", "100", "10k"}, Order: "desc"}},
			[]string{"+10k", "+1k", "+100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/sequence", tt.req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			body := decode[sequenceBody](t, w)
			assert.Equal(t, tt.want, labels(body.Sequence))
		})
	}
}

func TestSequenceDualBand(t *testing.T) {
	_, r, _ := newTestServer(t)

	req := SequenceRequest{ConfigRequest: ConfigRequest{
		Bands:           []string{"100", "200", "400", "800"},
		DualBand:        boolPtr(true),
		DisableAdjacent: intPtr(1),
	}}
	w := do(t, r, http.MethodPost, "/api/v1/sequence", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[sequenceBody](t, w)

	assert.Equal(t, []string{"+100 +400", "+100 +800", "+200 +800"}, labels(body.Sequence))
	for _, d := range body.Sequence {
		assert.True(t, d.Dual)
		assert.Len(t, d.Bands, 2)
	}

	// one band has no pairs
	req = SequenceRequest{ConfigRequest: ConfigRequest{Bands: []string{"1k"}, DualBand: boolPtr(true)}}
	w = do(t, r, http.MethodPost, "/api/v1/sequence", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[sequenceBody](t, w).Sequence)
}

func TestSequenceErrors(t *testing.T) {
	_, r, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed body", "not an object", http.StatusBadRequest},
		{"start outside options", SequenceRequest{Start: "500"}, http.StatusBadRequest},
		{"start not a number", SequenceRequest{Start: "loud"}, http.StatusBadRequest},
		{"empty bands", map[string]interface{}{"bands": []string{}}, http.StatusUnprocessableEntity},
		{"bad order", SequenceRequest{ConfigRequest: ConfigRequest{Order: "sideways"}}, http.StatusUnprocessableEntity},
		{"bad priority", SequenceRequest{ConfigRequest: ConfigRequest{Priority: intPtr(3)}}, http.StatusUnprocessableEntity},
		{"unknown preset", SequenceRequest{ConfigRequest: ConfigRequest{Preset: "bogus"}}, http.StatusUnprocessableEntity},
		{"zero band", SequenceRequest{ConfigRequest: ConfigRequest{Bands: []string{"0", "1k"}}}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/sequence", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	_, r, _ := newTestServer(t)

	sess := createSession(t, r, SessionRequest{Mode: "learn"})
	assert.Equal(t, "learn", sess.Mode)
	assert.Nil(t, sess.Current)
	assert.Equal(t, []float64{100, 1000, 10000}, sess.Config.Bands)

	base := "/api/v1/sessions/" + sess.ID

	w := do(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sess.ID, decode[SessionResponse](t, w).ID)

	w = do(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSessionErrors(t *testing.T) {
	_, r, _ := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/v1/sessions", SessionRequest{Mode: "exam"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"config": map[string]interface{}{"bands": []string{}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sessions", SessionRequest{Questions: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type nextBody struct {
	Drill    DrillResponse `json:"drill"`
	Position int           `json:"position"`
}

func TestSessionNextCycles(t *testing.T) {
	_, r, _ := newTestServer(t)
	sess := createSession(t, r, SessionRequest{})
	base := "/api/v1/sessions/" + sess.ID

	var got []string
	for i := 0; i < 4; i++ {
		w := do(t, r, http.MethodGet, base+"/next", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got = append(got, decode[nextBody](t, w).Drill.Label)
	}
	assert.Equal(t, []string{"+100", "+1k", "+10k", "+100"}, got)

	w := do(t, r, http.MethodGet, base+"/next?start=10k", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[nextBody](t, w)
	assert.Equal(t, "+10k", body.Drill.Label)
	assert.Equal(t, 1, body.Position)

	w = do(t, r, http.MethodGet, base+"/next?start=123", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionRandomNeverRepeats(t *testing.T) {
	_, r, _ := newTestServer(t)
	sess := createSession(t, r, SessionRequest{})
	base := "/api/v1/sessions/" + sess.ID

	prev := ""
	for i := 0; i < 30; i++ {
		w := do(t, r, http.MethodGet, base+"/random", nil)
		require.Equal(t, http.StatusOK, w.Code)
		label := decode[struct {
			Drill DrillResponse `json:"drill"`
		}](t, w).Drill.Label
		assert.NotEqual(t, prev, label)
		prev = label
	}
}

func TestSessionRegenerateAndConfig(t *testing.T) {
	_, r, _ := newTestServer(t)
	sess := createSession(t, r, SessionRequest{})
	base := "/api/v1/sessions/" + sess.ID

	w := do(t, r, http.MethodPost, base+"/generate", GenerateRequest{Start: "-1k"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[sequenceBody](t, w)
	assert.Equal(t, []string{"+1k", "+10k", "+100"}, labels(body.Sequence))
	assert.Equal(t, []float64{100, 1000, 10000}, body.Source)

	w = do(t, r, http.MethodPut, base+"/config", ConfigRequest{BoostCut: "-"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "-", decode[SessionResponse](t, w).Config.BoostCut)

	// the cached sequence was dropped, so next regenerates from the start
	w = do(t, r, http.MethodGet, base+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "-100", decode[nextBody](t, w).Drill.Label)

	w = do(t, r, http.MethodPut, base+"/config", map[string]interface{}{"bands": []string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"-100", "-1k", "-10k"}, labels(decode[sequenceBody](t, w).Sequence))
}

func TestSessionChoices(t *testing.T) {
	_, r, _ := newTestServer(t)
	sess := createSession(t, r, SessionRequest{Config: ConfigRequest{BoostCut: "+-"}})

	w := do(t, r, http.MethodGet, "/api/v1/sessions/"+sess.ID+"/choices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Choices []DrillResponse `json:"choices"`
	}](t, w)
	assert.Equal(t, []string{"+100", "-100", "+1k", "-1k", "+10k", "-10k"}, labels(body.Choices))
}

func TestLearnSessionAnswers(t *testing.T) {
	_, r, store := newTestServer(t)
	sess := createSession(t, r, SessionRequest{Mode: "learn"})
	base := "/api/v1/sessions/" + sess.ID

	w := do(t, r, http.MethodPost, base+"/answer", AnswerRequest{Answer: "+100"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, base+"/drill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[SessionResponse](t, w)
	require.NotNil(t, view.Current)
	assert.Equal(t, "+100", view.Current.Label)

	w = do(t, r, http.MethodPost, base+"/answer", AnswerRequest{Answer: "100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ans := decode[AnswerResponse](t, w)
	assert.True(t, ans.Correct)
	assert.Equal(t, 1, ans.Score.Correct)

	w = do(t, r, http.MethodPost, base+"/answer", AnswerRequest{Answer: "100"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, base+"/answer", AnswerRequest{Answer: "not a band"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, base+"/answer", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// learn sessions are never stored
	results, err := store.ListResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTestSessionSavesResult(t *testing.T) {
	_, r, _ := newTestServer(t)
	sess := createSession(t, r, SessionRequest{Mode: "test", Questions: 3, PassRatio: 0.5})
	assert.Equal(t, 3, sess.Questions)
	base := "/api/v1/sessions/" + sess.ID

	for i := 0; i < 3; i++ {
		w := do(t, r, http.MethodPost, base+"/drill", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		current := decode[SessionResponse](t, w).Current
		require.NotNil(t, current)

		w = do(t, r, http.MethodPost, base+"/answer", AnswerRequest{Answer: current.Label})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[AnswerResponse](t, w).Correct)
	}

	w := do(t, r, http.MethodPost, base+"/drill", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, base+"/score", nil)
	require.Equal(t, http.StatusOK, w.Code)
	score := decode[ScoreResponse](t, w)
	assert.Equal(t, 3, score.Correct)
	assert.True(t, score.Complete)
	assert.True(t, score.Passed)
	assert.InDelta(t, 100.0, score.Percent, 1e-9)

	w = do(t, r, http.MethodGet, "/api/v1/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[ResultsResponse](t, w).Results
	require.Len(t, results, 1)
	assert.Equal(t, sess.ID, results[0].SessionID)
	assert.Equal(t, "test", results[0].Mode)
	assert.Equal(t, "100,1k,10k", results[0].Bands)
	assert.True(t, results[0].Passed)

	w = do(t, r, http.MethodPost, base+"/restart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[SessionResponse](t, w).Score.Answered)
}

// failingStore fails the first n saves
type failingStore struct {
	*database.MemoryStore
	fails int
}

func (s *failingStore) SaveResult(ctx context.Context, r *database.Result) error {
	if s.fails > 0 {
		s.fails--
		return errors.New("db down")
	}
	return s.MemoryStore.SaveResult(ctx, r)
}

func TestTestSessionRetriesFailedSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &failingStore{MemoryStore: database.NewMemoryStore(), fails: 2}
	r := NewServer(testDefaults(), store, WithSeed(7)).Router()

	sess := createSession(t, r, SessionRequest{Mode: "test", Questions: 1})
	base := "/api/v1/sessions/" + sess.ID

	w := do(t, r, http.MethodPost, base+"/drill", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	current := decode[SessionResponse](t, w).Current
	require.NotNil(t, current)

	// the answer is recorded even though the store is down
	w = do(t, r, http.MethodPost, base+"/answer", AnswerRequest{Answer: current.Label})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[AnswerResponse](t, w).Score.Complete)

	results, err := store.ListResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	// second failure on score, then the session read saves it
	w = do(t, r, http.MethodGet, base+"/score", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)

	results, err = store.ListResults(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, sess.ID, results[0].SessionID)

	// saved once only
	w = do(t, r, http.MethodGet, base+"/score", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results, err = store.ListResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestListResultsLimit(t *testing.T) {
	_, r, store := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveResult(context.Background(), &database.Result{SessionID: id, Mode: "test"}))
	}

	w := do(t, r, http.MethodGet, "/api/v1/results?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[ResultsResponse](t, w).Results
	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].SessionID)

	w = do(t, r, http.MethodGet, "/api/v1/results?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportSequence(t *testing.T) {
	_, r, _ := newTestServer(t)
	sess := createSession(t, r, SessionRequest{})
	base := "/api/v1/sessions/" + sess.ID

	w := do(t, r, http.MethodGet, base+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "earquiz.mid")
	assert.Equal(t, "MThd", w.Body.String()[:4])

	w = do(t, r, http.MethodGet, base+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ex := decode[struct {
		Drills []string `json:"drills"`
	}](t, w)
	assert.Equal(t, []string{"+100", "+1k", "+10k"}, ex.Drills)

	w = do(t, r, http.MethodGet, base+"/export?format=wav", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(errSessionNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(drill.ErrInvalidFrequency))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(drill.ErrNoDrills))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
