package lead

import "testing"

func TestCatalogTables(t *testing.T) {
	if len(Programmes) != 13 {
		t.Fatalf("expected 13 programmes, got %d", len(Programmes))
	}
	if len(PostgradChoices) != 6 {
		t.Fatalf("expected 6 postgrad choices, got %d", len(PostgradChoices))
	}
	for programme := range programmeMajors {
		if !IsProgramme(programme) {
			t.Fatalf("majors table references unknown programme %q", programme)
		}
	}
}

func TestDefaultMajor(t *testing.T) {
	major, ok := DefaultMajor("Bachelor of Science in Information Technology")
	if !ok || major != "Programming" {
		t.Fatalf("unexpected default major %q %v", major, ok)
	}
	if _, ok := DefaultMajor("Higher Certificate in Office Administration"); ok {
		t.Fatal("expected no default major for a certificate")
	}
	if !IsMajor("Bachelor of Business Administration (BBA)", "Marketing Management") {
		t.Fatal("expected Marketing Management to be a BBA major")
	}
	if IsMajor("Diploma in Information Technology", "IT Management") {
		t.Fatal("IT Management is not a diploma major")
	}
}

func TestDefaultCatalogIsACopy(t *testing.T) {
	c := DefaultCatalog()
	c.Programmes[0] = "changed"
	c.Majors["Diploma in Information Technology"][0] = "changed"
	if Programmes[0] == "changed" {
		t.Fatal("catalog programmes alias the package table")
	}
	if majors := MajorsFor("Diploma in Information Technology"); majors[0] != "Programming" {
		t.Fatal("catalog majors alias the package table")
	}
	if MajorsFor("Bachelor of Public Management") != nil {
		t.Fatal("expected nil majors for programme without majors")
	}
}
