package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ndthien/promptshrink/internal/dto"
	"github.com/ndthien/promptshrink/internal/model"
	"gorm.io/gorm"
)

// ingestTestRepo mimics the (model, payload) uniqueness constraint and
// the insert-or-skip semantics of the real repository.
type ingestTestRepo struct {
	fakeTestRepo
	rows   map[[2]string]model.Test
	nextID uint
}

func newIngestTestRepo() *ingestTestRepo {
	return &ingestTestRepo{rows: make(map[[2]string]model.Test)}
}

func (r *ingestTestRepo) Create(test *model.Test) error {
	key := [2]string{test.Model, test.Payload}
	if _, ok := r.rows[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	test.ID = r.nextID
	r.rows[key] = *test
	return nil
}

func (r *ingestTestRepo) UpsertTests(tests []model.Test) (int64, error) {
	var inserted int64
	for i := range tests {
		if err := r.Create(&tests[i]); err == nil {
			inserted++
		}
	}
	return inserted, nil
}

func createDTO(modelName, payload string) dto.TestCreateDTO {
	return dto.TestCreateDTO{Model: modelName, Payload: json.RawMessage(payload)}
}

func TestCreateTestCanonicalizesPayload(t *testing.T) {
	repo := newIngestTestRepo()
	svc := NewAdminTestService(repo)

	// Keys deliberately out of canonical order.
	resp, err := svc.CreateTest(createDTO("M", `{"task":"2+2?","correct_answer":"4","options":["3","4"]}`))
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	want := `{"correct_answer":"4","options":["3","4"],"task":"2+2?"}`
	if string(resp.Payload) != want {
		t.Fatalf("payload must be stored canonically:\n got %s\nwant %s", resp.Payload, want)
	}
}

func TestCreateTestRejectsInvalidPayload(t *testing.T) {
	svc := NewAdminTestService(newIngestTestRepo())

	if _, err := svc.CreateTest(createDTO("M", `{"task":"x","options":["a","a"],"correct_answer":"a"}`)); err == nil {
		t.Fatal("duplicate options must be rejected")
	}
	if _, err := svc.CreateTest(createDTO("M", `not json`)); err == nil {
		t.Fatal("malformed payload must be rejected")
	}
}

func TestCreateTestDuplicateConflict(t *testing.T) {
	svc := NewAdminTestService(newIngestTestRepo())
	payload := `{"task":"2+2?","options":["3","4"],"correct_answer":"4"}`

	if _, err := svc.CreateTest(createDTO("M", payload)); err != nil {
		t.Fatal(err)
	}
	// Same payload with reordered keys is the same test.
	_, err := svc.CreateTest(createDTO("M", `{"correct_answer":"4","task":"2+2?","options":["3","4"]}`))
	if !errors.Is(err, ErrDuplicateTest) {
		t.Fatalf("expected ErrDuplicateTest, got %v", err)
	}
}

func TestBulkCreateTestsIsIdempotent(t *testing.T) {
	repo := newIngestTestRepo()
	svc := NewAdminTestService(repo)

	batch := dto.TestBulkCreateDTO{Tests: []dto.TestCreateDTO{
		createDTO("M", `{"task":"P1?","options":["a","b"],"correct_answer":"a"}`),
		createDTO("M", `{"task":"P2?","options":["a","b"],"correct_answer":"b"}`),
		createDTO("M", `{"task":"P1?","options":["a","b"],"correct_answer":"a"}`),
	}}

	inserted, err := svc.BulkCreateTests(batch)
	if err != nil {
		t.Fatalf("BulkCreateTests: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("first ingestion must insert 2 rows, got %d", inserted)
	}

	inserted, err = svc.BulkCreateTests(batch)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 0 {
		t.Fatalf("re-applying the batch must insert nothing, got %d", inserted)
	}
	if len(repo.rows) != 2 {
		t.Fatalf("expected exactly 2 stored rows, got %d", len(repo.rows))
	}
}

func TestBulkCreateTestsRejectsBadRow(t *testing.T) {
	svc := NewAdminTestService(newIngestTestRepo())
	batch := dto.TestBulkCreateDTO{Tests: []dto.TestCreateDTO{
		createDTO("M", `{"task":"ok?","options":["a","b"],"correct_answer":"a"}`),
		createDTO("M", `{"task":"bad","options":[],"correct_answer":"a"}`),
	}}

	if _, err := svc.BulkCreateTests(batch); err == nil {
		t.Fatal("a batch with an invalid row must be rejected as a whole")
	}
}
