package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jwpark-dev/facearena/internal/adapters/http/api"
	"github.com/jwpark-dev/facearena/internal/adapters/store"
	"github.com/jwpark-dev/facearena/internal/app"
	"github.com/jwpark-dev/facearena/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService scripts the Dependencies and StatsProvider contracts.
type fakeService struct {
	seen map[string]bool

	entities map[string]*model.Entity
	battles  map[string]*model.Battle
	entries  []api.Entry

	runBattleErr error
	battleRuns   int
}

func newFakeService() *fakeService {
	return &fakeService{
		seen:     make(map[string]bool),
		entities: make(map[string]*model.Entity),
		battles:  make(map[string]*model.Battle),
	}
}

func (f *fakeService) SeenAndRecord(_ context.Context, id string) bool {
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func (f *fakeService) Unrecord(_ context.Context, id string) {
	delete(f.seen, id)
}

func (f *fakeService) CreateEntity(_ context.Context, image []byte, gender model.Gender) (*model.Entity, error) {
	e := &model.Entity{
		ID:        fmt.Sprintf("entity-%d", len(f.entities)+1),
		Gender:    gender,
		Image:     image,
		Analysis:  model.Analysis{AverageScore: 7},
		CreatedAt: time.Now().UTC(),
	}
	f.entities[e.ID] = e
	return e, nil
}

func (f *fakeService) RunBattle(_ context.Context, battleID string, entityIDs []string) (*app.BattleResult, error) {
	if f.runBattleErr != nil {
		return nil, f.runBattleErr
	}
	f.battleRuns++
	b := model.Battle{
		ID:             battleID,
		ParticipantIDs: entityIDs,
		WinnerID:       entityIDs[0],
	}
	f.battles[battleID] = &b
	return &app.BattleResult{
		Battle:   b,
		Analyses: make([]model.Analysis, len(entityIDs)),
	}, nil
}

func (f *fakeService) Battle(_ context.Context, id string) (*model.Battle, error) {
	b, ok := f.battles[id]
	if !ok {
		return nil, fmt.Errorf("battle %s: %w", id, store.ErrNotFound)
	}
	return b, nil
}

func (f *fakeService) Entity(_ context.Context, id string) (*model.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, store.ErrNotFound)
	}
	return e, nil
}

func (f *fakeService) Matchmake(_ context.Context, challengerID string, n int) ([]model.Entity, error) {
	if _, ok := f.entities[challengerID]; !ok {
		return nil, fmt.Errorf("entity %s: %w", challengerID, store.ErrNotFound)
	}
	out := make([]model.Entity, 0, n)
	for _, e := range f.entities {
		if e.ID != challengerID && len(out) < n {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeService) Leaderboard(_ context.Context, _ model.Gender, topK int) ([]api.Entry, error) {
	if topK >= 0 && topK < len(f.entries) {
		return f.entries[:topK], nil
	}
	return f.entries, nil
}

func (f *fakeService) Rank(_ context.Context, entityID string) (api.Entry, error) {
	for _, e := range f.entries {
		if e.EntityID == entityID {
			return e, nil
		}
	}
	return api.Entry{}, fmt.Errorf("entity %s: %w", entityID, app.ErrNotRanked)
}

func (f *fakeService) GetStats() map[string]any {
	return map[string]any{"started": true}
}

func newTestServer(f *fakeService) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(f, f, 100).Register(mux)
	return httptest.NewServer(mux)
}

func postJSON(url string, body any) *http.Response {
	buf, err := json.Marshal(body)
	So(err, ShouldBeNil)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	So(err, ShouldBeNil)
	return resp
}

func TestPostEntities(t *testing.T) {
	Convey("Given a running API server", t, func() {
		f := newFakeService()
		ts := newTestServer(f)
		defer ts.Close()

		Convey("When posting a valid entity", func() {
			image := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF})
			resp := postJSON(ts.URL+"/entities", map[string]string{
				"image":  image,
				"gender": "female",
			})
			defer resp.Body.Close()

			Convey("Then the entity is created", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)

				var e model.Entity
				So(json.NewDecoder(resp.Body).Decode(&e), ShouldBeNil)
				So(e.ID, ShouldNotBeEmpty)
				So(e.Gender, ShouldEqual, model.GenderFemale)
			})
		})

		Convey("When posting garbage base64", func() {
			resp := postJSON(ts.URL+"/entities", map[string]string{
				"image":  "not-base64!!!",
				"gender": "male",
			})
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When posting an empty image", func() {
			resp := postJSON(ts.URL+"/entities", map[string]string{
				"image":  "",
				"gender": "male",
			})
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using the wrong method", func() {
			resp, err := http.Get(ts.URL + "/entities")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the route does not exist", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestGetEntity(t *testing.T) {
	Convey("Given a server with one stored entity", t, func() {
		f := newFakeService()
		ts := newTestServer(f)
		defer ts.Close()

		e, err := f.CreateEntity(context.Background(), []byte{0x01}, model.GenderMale)
		So(err, ShouldBeNil)

		Convey("When fetching it by id", func() {
			resp, err := http.Get(ts.URL + "/entities/" + e.ID)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the entity is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got model.Entity
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(got.ID, ShouldEqual, e.ID)
			})
		})

		Convey("When fetching an unknown id", func() {
			resp, err := http.Get(ts.URL + "/entities/nope")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When asking for opponents", func() {
			for i := 0; i < 3; i++ {
				_, err := f.CreateEntity(context.Background(), []byte{0x02}, model.GenderMale)
				So(err, ShouldBeNil)
			}
			resp, err := http.Get(ts.URL + "/entities/" + e.ID + "/opponents?count=2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then opponents are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got []model.Entity
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
			})
		})

		Convey("When the opponent count is out of range", func() {
			resp, err := http.Get(ts.URL + "/entities/" + e.ID + "/opponents?count=99")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPostBattles(t *testing.T) {
	Convey("Given a running API server", t, func() {
		f := newFakeService()
		ts := newTestServer(f)
		defer ts.Close()

		valid := map[string]any{
			"battle_id":  "battle-1",
			"entity_ids": []string{"e1", "e2"},
		}

		Convey("When posting a valid battle", func() {
			resp := postJSON(ts.URL+"/battles", valid)
			defer resp.Body.Close()

			Convey("Then the battle result is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				var result app.BattleResult
				So(json.NewDecoder(resp.Body).Decode(&result), ShouldBeNil)
				So(result.Battle.ID, ShouldEqual, "battle-1")
				So(result.Battle.WinnerID, ShouldEqual, "e1")
			})
		})

		Convey("When resubmitting the same battle id", func() {
			first := postJSON(ts.URL+"/battles", valid)
			first.Body.Close()
			second := postJSON(ts.URL+"/battles", valid)
			defer second.Body.Close()

			Convey("Then the replay carries the original outcome without running again", func() {
				So(second.StatusCode, ShouldEqual, http.StatusOK)
				var dup struct {
					Status    string        `json:"status"`
					Duplicate bool          `json:"duplicate"`
					Battle    *model.Battle `json:"battle"`
				}
				So(json.NewDecoder(second.Body).Decode(&dup), ShouldBeNil)
				So(dup.Duplicate, ShouldBeTrue)
				So(dup.Battle, ShouldNotBeNil)
				So(dup.Battle.ID, ShouldEqual, "battle-1")
				So(dup.Battle.WinnerID, ShouldEqual, "e1")
				So(f.battleRuns, ShouldEqual, 1)
			})
		})

		Convey("When the id aged out of the guard but the battle is stored", func() {
			f.battles["battle-1"] = &model.Battle{
				ID:             "battle-1",
				ParticipantIDs: []string{"e1", "e2"},
				WinnerID:       "e2",
			}
			f.runBattleErr = fmt.Errorf("could not save battle: %w", store.ErrDuplicate)
			resp := postJSON(ts.URL+"/battles", valid)
			defer resp.Body.Close()

			Convey("Then the stored outcome is replayed instead of failing", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var dup struct {
					Duplicate bool          `json:"duplicate"`
					Battle    *model.Battle `json:"battle"`
				}
				So(json.NewDecoder(resp.Body).Decode(&dup), ShouldBeNil)
				So(dup.Duplicate, ShouldBeTrue)
				So(dup.Battle, ShouldNotBeNil)
				So(dup.Battle.WinnerID, ShouldEqual, "e2")
			})
		})

		Convey("When the battle fails downstream", func() {
			f.runBattleErr = app.ErrQueueFull
			resp := postJSON(ts.URL+"/battles", valid)
			resp.Body.Close()

			Convey("Then backpressure maps to 429 and the id can be retried", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)

				f.runBattleErr = nil
				retry := postJSON(ts.URL+"/battles", valid)
				defer retry.Body.Close()
				So(retry.StatusCode, ShouldEqual, http.StatusCreated)
			})
		})

		Convey("When a participant is unknown", func() {
			f.runBattleErr = fmt.Errorf("entity missing: %w", store.ErrNotFound)
			resp := postJSON(ts.URL+"/battles", valid)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the request is malformed", func() {
			Convey("A missing battle_id is rejected", func() {
				resp := postJSON(ts.URL+"/battles", map[string]any{
					"entity_ids": []string{"e1", "e2"},
				})
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})

			Convey("A single participant is rejected", func() {
				resp := postJSON(ts.URL+"/battles", map[string]any{
					"battle_id":  "battle-x",
					"entity_ids": []string{"e1"},
				})
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Five participants are rejected", func() {
				resp := postJSON(ts.URL+"/battles", map[string]any{
					"battle_id":  "battle-x",
					"entity_ids": []string{"a", "b", "c", "d", "e"},
				})
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestGetLeaderboard(t *testing.T) {
	Convey("Given a server with ranked entries", t, func() {
		f := newFakeService()
		f.entries = []api.Entry{
			{Rank: 1, EntityID: "e1", Gender: "female", WinCount: 18, BattleCount: 20},
			{Rank: 2, EntityID: "e2", Gender: "female", WinCount: 5, BattleCount: 20},
		}
		ts := newTestServer(f)
		defer ts.Close()

		Convey("When requesting the leaderboard", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?gender=female&limit=10")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then entries are returned in order", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got []api.Entry
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].EntityID, ShouldEqual, "e1")
			})
		})

		Convey("When the gender is not a known partition", func() {
			for _, q := range []string{"gender=femal", "gender=FEMALE", "gender=other"} {
				resp, err := http.Get(ts.URL + "/leaderboard?" + q + "&limit=10")
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the gender is missing", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?limit=10")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"limit=0", "limit=-3", "limit=abc", ""} {
				resp, err := http.Get(ts.URL + "/leaderboard?gender=male&" + q)
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the limit exceeds the configured maximum", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?gender=male&limit=101")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetRank(t *testing.T) {
	Convey("Given a server with ranked entries", t, func() {
		f := newFakeService()
		f.entries = []api.Entry{
			{Rank: 1, EntityID: "e1", Gender: "male", WinCount: 9, BattleCount: 10},
		}
		ts := newTestServer(f)
		defer ts.Close()

		Convey("When requesting a ranked entity", func() {
			resp, err := http.Get(ts.URL + "/rank/e1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then its entry is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var got api.Entry
				So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
				So(got.Rank, ShouldEqual, 1)
			})
		})

		Convey("When the entity is not ranked", func() {
			resp, err := http.Get(ts.URL + "/rank/unranked")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is malformed", func() {
			resp, err := http.Get(ts.URL + "/rank/")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a running API server", t, func() {
		f := newFakeService()
		ts := newTestServer(f)
		defer ts.Close()

		Convey("When probing /healthz", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("When reading /stats", func() {
			resp, err := http.Get(ts.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.NewDecoder(resp.Body).Decode(&stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("When scraping /metrics", func() {
			resp, err := http.Get(ts.URL + "/metrics")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
