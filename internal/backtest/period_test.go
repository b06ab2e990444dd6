package backtest

import "testing"

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		token   string
		want    Period
		wantErr bool
	}{
		{"2021_Q1", Period{2021, 1}, false},
		{"Q4_2024", Period{2024, 4}, false},
		{"2023_q2", Period{2023, 2}, false},
		{"2023_Q5", Period{}, true},
		{"2023Q1", Period{}, true},
		{"", Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParsePeriod(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriod(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestPeriod_Compare(t *testing.T) {
	a := Period{2021, 4}
	b := Period{2022, 1}

	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("Compare should order quarters chronologically")
	}
}

func TestPeriod_String(t *testing.T) {
	p, _ := ParsePeriod("Q3_2022")
	if p.String() != "2022_Q3" {
		t.Errorf("expected canonical 2022_Q3, got %s", p.String())
	}
}

func TestPeriods(t *testing.T) {
	got := Periods(Period{2021, 3}, Period{2022, 2})
	want := []string{"2021_Q3", "2021_Q4", "2022_Q1", "2022_Q2"}

	if len(got) != len(want) {
		t.Fatalf("expected %d periods, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("period %d = %s, want %s", i, got[i], want[i])
		}
	}

	if len(Periods(Period{2022, 1}, Period{2021, 1})) != 0 {
		t.Error("expected no periods for an inverted range")
	}
}
