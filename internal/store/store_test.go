package store

import (
	"errors"
	"testing"
	"time"
)

type fakeBoard struct {
	Name string `json:"name"`
}

func TestCreateReadUpdate(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	id, err := s.Create(KindGeometry, "importer", fakeBoard{Name: "v1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var got fakeBoard
	version, err := s.Read(id, &got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if version != 1 || got.Name != "v1" {
		t.Fatalf("Read = v%d %+v, want v1 {v1}", version, got)
	}

	newVersion, err := s.Update(id, 1, "drc", fakeBoard{Name: "v2"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newVersion != 2 {
		t.Fatalf("newVersion = %d, want 2", newVersion)
	}

	version, err = s.Read(id, &got)
	if err != nil {
		t.Fatalf("Read after update: %v", err)
	}
	if version != 2 || got.Name != "v2" {
		t.Fatalf("Read after update = v%d %+v, want v2 {v2}", version, got)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	id, _ := s.Create(KindGeometry, "importer", fakeBoard{Name: "v1"})

	_, err := s.Update(id, 99, "drc", fakeBoard{Name: "v2"})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestReadNotFound(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	var got fakeBoard
	if _, err := s.Read("missing", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHistoryAndDelete(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	id, _ := s.Create(KindConstraint, "importer", fakeBoard{Name: "v1"})
	_, _ = s.Update(id, 1, "drc", fakeBoard{Name: "v2"})

	history, err := s.History(id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[0].Version != 1 || history[1].Version != 2 {
		t.Fatalf("History = %+v", history)
	}

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(id, &fakeBoard{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after delete: %v, want ErrNotFound", err)
	}
}

func TestCreate_TimestampsAndMetadata(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	id, err := s.Create(KindGeometry, "importer", fakeBoard{Name: "v1"},
		WithSourceEngine("altium-drc-importer"), WithTags("board-a"),
		WithRelations(Relation{Role: "derived-from", TargetID: "src-1"}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	meta, err := s.Meta(id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if meta.CreatedAt == "" || meta.UpdatedAt == "" || meta.CreatedAt != meta.UpdatedAt {
		t.Fatalf("expected created_at == updated_at on creation, got %+v", meta)
	}
	if meta.SourceEngine != "altium-drc-importer" {
		t.Fatalf("SourceEngine = %q", meta.SourceEngine)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "board-a" {
		t.Fatalf("Tags = %+v", meta.Tags)
	}
	if len(meta.Relations) != 1 || meta.Relations[0].TargetID != "src-1" {
		t.Fatalf("Relations = %+v", meta.Relations)
	}
}

func TestUpdate_RelationsMergeNotDropped(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	id, _ := s.Create(KindPatch, "agent", fakeBoard{Name: "v1"},
		WithRelations(Relation{Role: "board", TargetID: "board-1"}))

	// Updating without touching relations must preserve the existing one.
	if _, err := s.Update(id, 1, "agent", fakeBoard{Name: "v2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	meta, err := s.Meta(id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if len(meta.Relations) != 1 || meta.Relations[0].TargetID != "board-1" {
		t.Fatalf("expected relation preserved across update, got %+v", meta.Relations)
	}

	// Adding a relation with a new role appends; a relation with an
	// existing role updates in place; nothing is silently dropped.
	if _, err := s.Update(id, 2, "agent", fakeBoard{Name: "v3"},
		WithRelations(
			Relation{Role: "violations", TargetID: "viol-1"},
			Relation{Role: "board", TargetID: "board-2"},
		)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	meta, err = s.Meta(id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if len(meta.Relations) != 2 {
		t.Fatalf("expected 2 relations after merge, got %+v", meta.Relations)
	}
	byRole := map[string]string{}
	for _, r := range meta.Relations {
		byRole[r.Role] = r.TargetID
	}
	if byRole["board"] != "board-2" || byRole["violations"] != "viol-1" {
		t.Fatalf("unexpected merged relations: %+v", meta.Relations)
	}

	// Explicit replacement is the only way to actually remove one.
	if _, err := s.Update(id, 3, "agent", fakeBoard{Name: "v4"},
		WithReplacedRelations([]Relation{{Role: "board", TargetID: "board-2"}})); err != nil {
		t.Fatalf("Update: %v", err)
	}
	meta, err = s.Meta(id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if len(meta.Relations) != 1 || meta.Relations[0].Role != "board" {
		t.Fatalf("expected replacement to drop the violations relation, got %+v", meta.Relations)
	}
}

func TestUpdate_CreatedAtStableUpdatedAtAdvances(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	id, _ := s.Create(KindGeometry, "importer", fakeBoard{Name: "v1"})
	first, err := s.Meta(id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}

	// Timestamps have one-second resolution, so wait past the next second.
	time.Sleep(1100 * time.Millisecond)
	if _, err := s.Update(id, 1, "drc", fakeBoard{Name: "v2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	second, err := s.Meta(id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("created_at changed across Update: %q -> %q", first.CreatedAt, second.CreatedAt)
	}
	if second.UpdatedAt <= first.UpdatedAt {
		t.Fatalf("updated_at did not advance across Update: %q -> %q", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestRelated_WalksCycleWithoutLooping(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)

	// a -> b -> c -> a: a genuine cycle among three artifacts.
	idA, _ := s.Create(KindGeometry, "importer", fakeBoard{Name: "a"})
	idB, _ := s.Create(KindGeometry, "importer", fakeBoard{Name: "b"})
	idC, _ := s.Create(KindGeometry, "importer", fakeBoard{Name: "c"})

	if _, err := s.Update(idA, 1, "importer", fakeBoard{Name: "a"}, WithRelations(Relation{Role: "next", TargetID: idB})); err != nil {
		t.Fatalf("Update a: %v", err)
	}
	if _, err := s.Update(idB, 1, "importer", fakeBoard{Name: "b"}, WithRelations(Relation{Role: "next", TargetID: idC})); err != nil {
		t.Fatalf("Update b: %v", err)
	}
	if _, err := s.Update(idC, 1, "importer", fakeBoard{Name: "c"}, WithRelations(Relation{Role: "next", TargetID: idA})); err != nil {
		t.Fatalf("Update c: %v", err)
	}

	related, err := s.Related(idA)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("expected exactly b and c reachable from a, got %+v", related)
	}
	seen := map[string]bool{}
	for _, id := range related {
		seen[id] = true
	}
	if !seen[idB] || !seen[idC] {
		t.Fatalf("expected b and c in %+v", related)
	}
}

func TestList(t *testing.T) {
	s, _ := Open(t.TempDir(), nil)
	id1, _ := s.Create(KindGeometry, "importer", fakeBoard{Name: "a"})
	id2, _ := s.Create(KindConstraint, "importer", fakeBoard{Name: "b"})

	summaries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("List = %+v, want 2 entries", summaries)
	}
	seen := map[string]bool{id1: false, id2: false}
	for _, sum := range summaries {
		seen[sum.ID] = true
	}
	if !seen[id1] || !seen[id2] {
		t.Fatalf("List missing an artifact: %+v", summaries)
	}
}
