package language

import (
	"reflect"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	tbl := Default()

	if n := len(tbl.Sources()); n != 19 {
		t.Errorf("sources = %d, want 19", n)
	}
	if n := len(tbl.Targets()); n != 12 {
		t.Errorf("targets = %d, want 12", n)
	}

	kor, ok := tbl.Lookup("kor")
	if !ok {
		t.Fatal("kor should be in the table")
	}
	if kor.TranslationCode != "ko" || kor.Name != "Korean" {
		t.Errorf("kor = %+v", kor)
	}
	if first := tbl.Sources()[0].Code; first != "jpn" {
		t.Errorf("first source = %q, want jpn", first)
	}
	if !tbl.HasTarget("zh-tw") || !tbl.HasTarget("ZH-TW") {
		t.Error("zh-tw should be a target")
	}
	if tbl.HasTarget("xx") {
		t.Error("xx should not be a target")
	}
}

func TestInstalledKeepsTableOrder(t *testing.T) {
	tbl := Default()
	got := tbl.Installed([]string{"eng", "osd", "kor", "jpn"})

	var codes []string
	for _, info := range got {
		codes = append(codes, info.Code)
	}
	if want := []string{"jpn", "kor", "eng"}; !reflect.DeepEqual(codes, want) {
		t.Errorf("Installed = %v, want %v", codes, want)
	}
}

func TestCandidates(t *testing.T) {
	installed := Default().Installed([]string{"jpn", "kor", "eng", "fra"})

	if got := Candidates(installed, nil); !reflect.DeepEqual(got, []string{"jpn", "kor", "eng", "fra"}) {
		t.Errorf("Candidates(nil) = %v", got)
	}
	if got := Candidates(installed, []string{"fra", "kor", "rus"}); !reflect.DeepEqual(got, []string{"kor", "fra"}) {
		t.Errorf("Candidates(filtered) = %v", got)
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	tests := map[string]string{
		"bad code":   "sources:\n  - {code: xxx, name: X, translation: '!!'}\n",
		"duplicate":  "sources:\n  - {code: jpn, name: J, translation: ja}\n  - {code: jpn, name: J, translation: ja}\n",
		"empty code": "sources:\n  - {code: '', name: J, translation: ja}\n",
		"unknown":    "languages: []\n",
	}
	for name, doc := range tests {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: Parse should fail", name)
		}
	}
}
