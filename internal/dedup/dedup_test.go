package dedup

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/oppscan/oppscan/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  lots   of\t\nwhitespace  ", "lots of whitespace"},
		{"CRM for dog-walkers (really!)", "crm for dog walkers really"},
		{"", ""},
		{"...", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("Invoice tracking for freelancers")
	b := Fingerprint("invoice   tracking, for FREELANCERS!")
	if a != b {
		t.Error("expected identical fingerprints for text differing only in case/punctuation")
	}

	c := Fingerprint("something else entirely")
	if a == c {
		t.Error("expected different fingerprints for different text")
	}
}

func TestResolveIdempotence(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	first, isNew, err := r.Resolve("Invoice tracking for freelancers", "t3_one")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !isNew {
		t.Error("expected first resolve to create")
	}

	second, isNew, err := r.Resolve("invoice tracking for freelancers", "t3_two")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if isNew {
		t.Error("expected second resolve to match")
	}
	if second.ConceptID != first.ConceptID {
		t.Errorf("expected same concept_id, got %s vs %s", first.ConceptID, second.ConceptID)
	}
	if second.MemberCount != first.MemberCount+1 {
		t.Errorf("expected member_count incremented by exactly 1, got %d -> %d", first.MemberCount, second.MemberCount)
	}
	if second.RepresentativePostID != "t3_one" {
		t.Errorf("representative must stay the first post, got %s", second.RepresentativePostID)
	}
}

func TestResolveConcurrentSameFingerprint(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	const workers = 8
	var wg sync.WaitGroup
	created := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := r.Resolve("same underlying idea", "t3_racer")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			created <- isNew
		}()
	}
	wg.Wait()
	close(created)

	newCount := 0
	for isNew := range created {
		if isNew {
			newCount++
		}
	}
	if newCount != 1 {
		t.Errorf("expected exactly one creation across %d racers, got %d", workers, newCount)
	}

	c, err := db.GetConceptByFingerprint(Fingerprint("same underlying idea"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if c.MemberCount != workers {
		t.Errorf("expected member_count %d, got %d", workers, c.MemberCount)
	}
}

func TestIdentifierDerivation(t *testing.T) {
	fp := Fingerprint("some idea")
	cid := ConceptID(fp)
	if len(cid) != len("c-")+12 {
		t.Errorf("unexpected concept id %q", cid)
	}

	oid := OpportunityID(cid)
	if oid != "opp-"+fp[:12] {
		t.Errorf("unexpected opportunity id %q", oid)
	}

	copyID := CopyOpportunityID(cid, "t3_two")
	if copyID != oid+"-t3_two" {
		t.Errorf("unexpected copy id %q", copyID)
	}
}
