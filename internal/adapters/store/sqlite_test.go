package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jwpark-dev/facearena/internal/adapters/store"
	"github.com/jwpark-dev/facearena/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestStore() *store.SQLiteStore {
	s, err := store.Open(":memory:")
	So(err, ShouldBeNil)
	return s
}

func testEntity(id string, gender model.Gender) *model.Entity {
	return &model.Entity{
		ID:     id,
		Gender: gender,
		Analysis: model.Analysis{
			GoldenRatio:     7,
			GoldenRatioDesc: "조화로운 비율입니다.",
			AverageScore:    7,
			Persona:         "강아지상",
		},
		Image:     []byte{0xFF, 0xD8, 0xFF},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_Entities(t *testing.T) {
	Convey("Given an open store", t, func() {
		s := openTestStore()
		defer s.Close()
		ctx := context.Background()

		Convey("When saving and loading an entity", func() {
			want := testEntity("entity-1", model.GenderFemale)
			So(s.SaveEntity(ctx, want), ShouldBeNil)

			got, err := s.Entity(ctx, "entity-1")

			Convey("Then the stored fields round-trip", func() {
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, want.ID)
				So(got.Gender, ShouldEqual, model.GenderFemale)
				So(got.Analysis.GoldenRatio, ShouldEqual, 7)
				So(got.Analysis.Persona, ShouldEqual, "강아지상")
				So(got.Image, ShouldResemble, want.Image)
			})

			Convey("And saving the same id again reports a duplicate", func() {
				So(s.SaveEntity(ctx, want), ShouldWrap, store.ErrDuplicate)
			})
		})

		Convey("When loading an unknown entity", func() {
			_, err := s.Entity(ctx, "missing")

			Convey("Then the sentinel not-found error is returned", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})
		})

		Convey("When listing by gender", func() {
			So(s.SaveEntity(ctx, testEntity("m1", model.GenderMale)), ShouldBeNil)
			So(s.SaveEntity(ctx, testEntity("m2", model.GenderMale)), ShouldBeNil)
			So(s.SaveEntity(ctx, testEntity("f1", model.GenderFemale)), ShouldBeNil)

			Convey("Then only the requested partition is returned", func() {
				males, err := s.Entities(ctx, model.GenderMale)
				So(err, ShouldBeNil)
				So(len(males), ShouldEqual, 2)

				females, err := s.Entities(ctx, model.GenderFemale)
				So(err, ShouldBeNil)
				So(len(females), ShouldEqual, 1)
				So(females[0].ID, ShouldEqual, "f1")
			})

			Convey("And the empty gender returns everything", func() {
				all, err := s.Entities(ctx, "")
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 3)

				n, err := s.CountEntities(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
			})
		})

		Convey("When picking random opponents", func() {
			for i := 0; i < 5; i++ {
				So(s.SaveEntity(ctx, testEntity(fmt.Sprintf("f%d", i), model.GenderFemale)), ShouldBeNil)
			}
			So(s.SaveEntity(ctx, testEntity("m0", model.GenderMale)), ShouldBeNil)

			opponents, err := s.RandomOpponents(ctx, model.GenderFemale, "f0", 3)

			Convey("Then the challenger and other partitions are excluded", func() {
				So(err, ShouldBeNil)
				So(len(opponents), ShouldEqual, 3)
				for _, o := range opponents {
					So(o.ID, ShouldNotEqual, "f0")
					So(o.ID, ShouldNotEqual, "m0")
					So(o.Gender, ShouldEqual, model.GenderFemale)
				}
			})

			Convey("And asking for zero opponents returns none", func() {
				none, err := s.RandomOpponents(ctx, model.GenderFemale, "f0", 0)
				So(err, ShouldBeNil)
				So(none, ShouldBeEmpty)
			})
		})
	})
}

func TestSQLiteStore_IncrementStats(t *testing.T) {
	Convey("Given a stored entity", t, func() {
		s := openTestStore()
		defer s.Close()
		ctx := context.Background()
		So(s.SaveEntity(ctx, testEntity("e1", model.GenderMale)), ShouldBeNil)

		Convey("When recording a win and two losses", func() {
			So(s.IncrementStats(ctx, "e1", true), ShouldBeNil)
			So(s.IncrementStats(ctx, "e1", false), ShouldBeNil)
			So(s.IncrementStats(ctx, "e1", false), ShouldBeNil)

			Convey("Then all three counters line up", func() {
				got, err := s.Entity(ctx, "e1")
				So(err, ShouldBeNil)
				So(got.BattleCount, ShouldEqual, 3)
				So(got.WinCount, ShouldEqual, 1)
				So(got.LossCount, ShouldEqual, 2)
				So(got.Valid(), ShouldBeTrue)
			})
		})

		Convey("When incrementing an unknown entity", func() {
			err := s.IncrementStats(ctx, "missing", true)

			Convey("Then the sentinel not-found error is returned", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})
		})
	})
}

func TestSQLiteStore_Battles(t *testing.T) {
	Convey("Given an open store", t, func() {
		s := openTestStore()
		defer s.Close()
		ctx := context.Background()

		Convey("When saving and loading a battle", func() {
			want := &model.Battle{
				ID:             "battle-1",
				ParticipantIDs: []string{"e1", "e2", "e3"},
				WinnerID:       "e2",
				RawResult:      "첫 번째 얼굴 분석 ...",
				CreatedAt:      time.Now().UTC().Truncate(time.Second),
			}
			So(s.SaveBattle(ctx, want), ShouldBeNil)

			got, err := s.Battle(ctx, "battle-1")

			Convey("Then participants and winner round-trip", func() {
				So(err, ShouldBeNil)
				So(got.ParticipantIDs, ShouldResemble, want.ParticipantIDs)
				So(got.WinnerID, ShouldEqual, "e2")
				So(got.RawResult, ShouldEqual, want.RawResult)
			})

			Convey("And saving the same battle id again reports a duplicate", func() {
				So(s.SaveBattle(ctx, want), ShouldWrap, store.ErrDuplicate)
			})
		})

		Convey("When loading an unknown battle", func() {
			_, err := s.Battle(ctx, "missing")

			Convey("Then the sentinel not-found error is returned", func() {
				So(err, ShouldWrap, store.ErrNotFound)
			})
		})
	})
}

func TestSQLiteStore_Reconcile(t *testing.T) {
	Convey("Given entities with damaged counters", t, func() {
		s := openTestStore()
		defer s.Close()
		ctx := context.Background()

		healthy := testEntity("healthy", model.GenderMale)
		healthy.WinCount = 3
		healthy.BattleCount = 5
		healthy.LossCount = 2
		So(s.SaveEntity(ctx, healthy), ShouldBeNil)

		overcounted := testEntity("overcounted", model.GenderMale)
		overcounted.WinCount = 9
		overcounted.BattleCount = 4
		overcounted.LossCount = 0
		So(s.SaveEntity(ctx, overcounted), ShouldBeNil)

		stale := testEntity("stale-loss", model.GenderFemale)
		stale.WinCount = 2
		stale.BattleCount = 6
		stale.LossCount = 0
		So(s.SaveEntity(ctx, stale), ShouldBeNil)

		Convey("When reconciling", func() {
			repaired, err := s.Reconcile(ctx)

			Convey("Then only the damaged rows are touched", func() {
				So(err, ShouldBeNil)
				So(repaired, ShouldEqual, 2)
			})

			Convey("And the invariant holds for every entity afterwards", func() {
				all, err := s.Entities(ctx, "")
				So(err, ShouldBeNil)
				for i := range all {
					e := &all[i]
					So(e.Valid(), ShouldBeTrue)
					So(e.LossCount, ShouldEqual, e.BattleCount-e.WinCount)
				}

				fixed, err := s.Entity(ctx, "overcounted")
				So(err, ShouldBeNil)
				So(fixed.WinCount, ShouldEqual, 4)
				So(fixed.LossCount, ShouldEqual, 0)
			})

			Convey("And a second pass finds nothing left to repair", func() {
				again, err := s.Reconcile(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)
			})
		})
	})
}
