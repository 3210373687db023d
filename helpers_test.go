package rased

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, time.September, 16, 9, 30, 0, 0, time.UTC)

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", path, err)
	}
	return out
}

func completeRecord() StudentRecord {
	rec := NewStudent(TeacherProfile{Name: "Mme Payet", School: "Simone VEIL", SchoolType: SchoolElementary}, fixedNow)
	rec.Establishment.RequestDate = "2024-09-16"
	rec.Student.LastName = "Martin"
	rec.Student.FirstName = "Lea"
	rec.Student.BirthDate = "2020-09-01"
	rec.Student.Grade = "CP"
	return rec
}
